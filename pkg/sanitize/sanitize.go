package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// Filename strips directory components, traversal sequences and control
// characters from a client supplied file name. It returns "file" when
// nothing usable is left.
func Filename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = controlChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ". ")
	if name == "" || name == "/" {
		return "file"
	}
	return name
}

// Text removes control characters except newlines and tabs, and trims surrounding whitespace.
func Text(input string) string {
	var result strings.Builder
	for _, r := range input {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
