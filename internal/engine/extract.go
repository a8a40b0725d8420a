package engine

import (
	"regexp"
	"strings"
)

// Vietnamese mobile numbers: prefixes 03/05/07/08/09 followed by 8 digits.
var phonePattern = regexp.MustCompile(`0[35789]\d{8}`)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

var phoneSeparators = strings.NewReplacer(".", "", "-", "", " ", "")

// ExtractPhone finds the first Vietnamese mobile number in text after
// stripping separator noise. Returns "" when nothing matches; total for
// all inputs, never errors.
func ExtractPhone(text string) string {
	if text == "" {
		return ""
	}
	return phonePattern.FindString(phoneSeparators.Replace(text))
}

// ExtractEmail finds the first email address in text. Returns "" when
// nothing matches; total for all inputs, never errors.
func ExtractEmail(text string) string {
	if text == "" {
		return ""
	}
	return emailPattern.FindString(text)
}
