package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain lowercase", "halo dunia", "halo dunia"},
		{"uppercase folded", "HALO Dunia", "halo dunia"},
		{"leetspeak digits", "k0n70l", "kontol"},
		{"symbol substitutions", "b@b! 4nj1ng", "babi anjing"},
		{"small caps letterforms", "ᴋᴏɴᴛᴏʟ", "kontol"},
		{"stylized math letters", "\U0001d42c\U0001d42e\U0001d42c\U0001d42e", "susu"},
		{"decorations stripped", "a-n*j~i.n,g", "anjing"},
		{"whitespace preserved", "kk  banget\nsekali", "kk  banget\nsekali"},
		{"unmapped digits kept", "th2828", "th2828"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Fold(tc.in))
		})
	}
}

func TestFoldIdempotent(t *testing.T) {
	inputs := []string{
		"Dibalik Masker : aku\nTarget : dia\nUngkapan : h4l0 ᴅᴜɴɪᴀ",
		"k0n___70l!!!",
		"biasa saja",
		"",
	}
	for _, in := range inputs {
		once := Fold(in)
		assert.Equal(t, once, Fold(once), "re-folding must be a no-op for %q", in)
	}
}
