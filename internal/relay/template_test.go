package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmission(t *testing.T) {
	sub, err := ParseSubmission("Dibalik Masker : seorang pengagum\nTarget : kamu\nUngkapan : halo dunia")
	require.NoError(t, err)
	assert.Equal(t, "seorang pengagum", sub.Mask)
	assert.Equal(t, "kamu", sub.Target)
	assert.Equal(t, "halo dunia", sub.Ungkapan)
}

func TestParseSubmissionCaseInsensitive(t *testing.T) {
	sub, err := ParseSubmission("dibalik masker: aku\ntarget: dia\nungkapan: sesuatu")
	require.NoError(t, err)
	assert.Equal(t, "aku", sub.Mask)
}

func TestParseSubmissionMultilineUngkapan(t *testing.T) {
	sub, err := ParseSubmission("Dibalik Masker : aku\nTarget : dia\nUngkapan : baris satu\nbaris dua trailing   ")
	require.NoError(t, err)
	assert.Equal(t, "baris satu\nbaris dua trailing", sub.Ungkapan)
}

func TestParseSubmissionMismatch(t *testing.T) {
	for _, text := range []string{
		"halo, ini bukan menfess",
		"Dibalik Masker : aku\nUngkapan : tanpa target",
		"Target : dia\nDibalik Masker : aku\nUngkapan : urutan salah",
		"",
	} {
		_, err := ParseSubmission(text)
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr, "input %q", text)
		assert.Equal(t, TemplateHelp, formatErr.Help)
	}
}

func TestCaption(t *testing.T) {
	sub := &Submission{Mask: "aku", Target: "dia", Ungkapan: "halo"}
	assert.Equal(t, "📩 *Menfess Baru*\n\nDibalik Masker : aku\nTarget : dia\nUngkapan : halo", sub.Caption())
}

func TestFormatErrorIsNotOtherKinds(t *testing.T) {
	_, err := ParseSubmission("bukan format")
	assert.False(t, errors.Is(err, ErrBanned))
}
