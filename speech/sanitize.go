package speech

import (
	"regexp"
	"strings"
)

var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
	linkRe       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	imageRe      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*[-*+•]\s+`)
	quoteRe      = regexp.MustCompile(`(?m)^>\s?`)
	markupRe     = regexp.MustCompile(`[*_~|#]+`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Sanitize strips markup and decorative tokens from text destined for
// synthesis: code blocks are dropped entirely, links keep their label, and
// emphasis, heading, bullet and quote markers are removed. Whitespace is
// collapsed to single spaces.
func Sanitize(text string) string {
	out := codeFenceRe.ReplaceAllString(text, " ")
	out = inlineCodeRe.ReplaceAllString(out, " ")
	out = imageRe.ReplaceAllString(out, " ")
	out = linkRe.ReplaceAllString(out, "$1")
	out = headingRe.ReplaceAllString(out, "")
	out = bulletRe.ReplaceAllString(out, "")
	out = quoteRe.ReplaceAllString(out, "")
	out = markupRe.ReplaceAllString(out, "")
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
