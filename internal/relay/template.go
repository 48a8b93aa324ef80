package relay

import (
	"fmt"
	"regexp"
	"strings"
)

// menfessPattern is the required three-field submission template. Field bodies
// are free text running to the next field label; matching is case-insensitive
// and the last field may span multiple lines.
var menfessPattern = regexp.MustCompile(
	`(?is)^Dibalik Masker\s*:\s*(.+)\nTarget\s*:\s*(.+)\nUngkapan\s*:\s*(.+)`)

// TemplateHelp is shown to the submitter on a format mismatch.
const TemplateHelp = "❌ Format salah.\n\nGunakan format berikut:\n\n" +
	"`Dibalik Masker : \nTarget : \nUngkapan : \n`"

// Submission is a parsed menfess template.
type Submission struct {
	Mask     string
	Target   string
	Ungkapan string
}

// ParseSubmission validates raw text against the menfess template. A mismatch
// returns a FormatError carrying the expected template.
func ParseSubmission(text string) (*Submission, error) {
	match := menfessPattern.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return nil, &FormatError{Help: TemplateHelp}
	}
	return &Submission{
		Mask:     strings.TrimSpace(match[1]),
		Target:   strings.TrimSpace(match[2]),
		Ungkapan: strings.TrimSpace(match[3]),
	}, nil
}

// Caption recomposes the parsed fields into the published post.
func (s *Submission) Caption() string {
	return fmt.Sprintf("📩 *Menfess Baru*\n\nDibalik Masker : %s\nTarget : %s\nUngkapan : %s",
		s.Mask, s.Target, s.Ungkapan)
}
