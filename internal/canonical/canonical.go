package canonical

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// confusables maps leetspeak digits/symbols and stylized Unicode letterforms to
// the Latin letter they imitate. Applied after NFKD and lowercasing.
var confusables = strings.NewReplacer(
	"0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t",
	"@", "a", "$", "s", "!", "i", "|", "i", "+", "t",
	"(", "c", ")", "c", "{", "c", "}", "c", "[", "c", "]", "c",
	"ᴏ", "o", "ʟ", "l", "ᴀ", "a", "ᴋ", "k", "ɴ", "n", "ᴅ", "d", "ʀ", "r",
	"ʙ", "b", "ʜ", "h", "ɢ", "g", "ɪ", "i", "ꜱ", "s", "ᴛ", "t",
	"ᴍ", "m", "ɯ", "m", "ʏ", "y", "ɾ", "r", "ᴘ", "p", "ꞯ", "n",
)

// Fold normalizes arbitrary user text into the canonical form used for banned-term
// matching and as the content fingerprint for thread-root linking. It is never used
// for display. The result contains only lowercase Latin letters, digits and
// whitespace, so folding an already-folded string is a no-op.
func Fold(s string) string {
	s = norm.NFKD.String(s)
	s = strings.ToLower(s)
	s = confusables.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '\v', r == '\f':
			b.WriteRune(r)
		}
	}
	return b.String()
}
