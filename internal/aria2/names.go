package aria2

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DisplayName returns a cleaned, NFC-normalized name for the task. Torrent
// metadata and remote file names arrive in whatever form the origin encoded;
// normalizing keeps log lines, notifications, and table output stable when
// the same name shows up in decomposed and precomposed forms.
func DisplayName(t Task) string {
	return CleanName(t.Name())
}

// CleanName normalizes an arbitrary download name for display.
func CleanName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}
