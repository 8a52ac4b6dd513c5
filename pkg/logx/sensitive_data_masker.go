package logx

import (
	"regexp"
)

type SensitiveDataMaskerInterface interface {
	Mask(input []byte) []byte
}

//nolint:gochecknoglobals
var sensitiveDataPatterns = []*regexp.Regexp{
	// Headers.
	regexp.MustCompile("(?s)(Authorization: Bearer ).+?(\r)"),
	regexp.MustCompile(`(?s)((?:Set-)?Cookie: ).+?(\r)`),
	// JSON fields.
	regexp.MustCompile(`(?s)("[Pp]assword":\s?").+?(")`),
	regexp.MustCompile(`(?s)("shared_secret":\s?").+?(")`),
	regexp.MustCompile(`(?s)("identity_secret":\s?").+?(")`),
	regexp.MustCompile(`(?s)("access_token":\s?").+?(")`),
	regexp.MustCompile(`(?s)("refresh_token":\s?").+?(")`),
	regexp.MustCompile(`(?s)("sessionid":\s?").+?(")`),
	regexp.MustCompile(`(?s)("steamLoginSecure":\s?").+?(")`),
	// Form fields.
	regexp.MustCompile(`(password=)[^&\s]+`),
}

type SensitiveDataMasker struct{}

func NewSensitiveDataMasker() SensitiveDataMasker {
	return SensitiveDataMasker{}
}

func (s SensitiveDataMasker) Mask(input []byte) []byte {
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAll(input, []byte("${1}[MASKED]${2}"))
	}

	return input
}
