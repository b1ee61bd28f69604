package prompt

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Iron-Ham/ideaforge/internal/util"
)

var (
	dashRun     = regexp.MustCompile(`-{3,}`)
	equalsRun   = regexp.MustCompile(`={3,}`)
	backtickRun = regexp.MustCompile("`{3,}")
	roleLabel   = regexp.MustCompile(`(?im)^([\s›*#\-]*)(system|user|assistant|human|ai|developer|tool)\s*:`)
	sectionTag  = regexp.MustCompile(`(?m)^(\s*)\[([A-Za-z][A-Za-z _-]*)\]`)
)

// Neutralize disables the structural delimiters an injected instruction
// could use inside interpolated text: angle-bracket tags become ‹ ›, runs
// of three or more dashes, equals signs or backticks are shortened,
// line-leading role labels such as "System:" become "(System)", and
// line-leading [SECTION] labels become (SECTION). Control characters other
// than newline and tab are dropped.
func Neutralize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '<':
			return '‹'
		case r == '>':
			return '›'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = dashRun.ReplaceAllString(s, "--")
	s = equalsRun.ReplaceAllString(s, "==")
	s = backtickRun.ReplaceAllString(s, "''")
	s = roleLabel.ReplaceAllString(s, "$1($2)")
	s = sectionTag.ReplaceAllString(s, "$1($2)")
	return strings.TrimSpace(s)
}

// Clean neutralizes s and clips it to limit runes.
func Clean(s string, limit int) string {
	return util.TruncateString(Neutralize(s), limit)
}
