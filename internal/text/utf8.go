// Package text decodes raw file bytes into displayable strings and expands
// tab stops, mirroring the teacher's small utility packages.
package text

import (
	"strings"
	"unicode/utf8"
)

// DecodeUTF8 returns data decoded as UTF-8. If data ends mid-codepoint, the
// longest valid prefix is returned without copying, as long as the invalid
// tail is at most 4 bytes — the maximum length of a UTF-8 codepoint, so a
// tail that long can never become valid by waiting for more bytes. Longer
// invalid runs are assumed to be genuinely non-UTF-8 and are lossily
// decoded instead.
func DecodeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	validUpTo := validPrefixLen(data)
	if len(data)-validUpTo <= utf8.UTFMax {
		return string(data[:validUpTo])
	}
	return strings.ToValidUTF8(string(data), "�")
}

// validPrefixLen returns the length of the longest valid UTF-8 prefix of data.
func validPrefixLen(data []byte) int {
	valid := 0
	for valid < len(data) {
		r, size := utf8.DecodeRune(data[valid:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		valid += size
	}
	return valid
}
