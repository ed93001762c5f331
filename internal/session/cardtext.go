package session

import (
	"html"
	"regexp"
	"strings"
)

// Card content arrives as review-screen HTML. Speaking it verbatim would
// read markup, media references, and interface hints aloud, so the text is
// reduced to the plain words before synthesis.
var (
	soundTagRe = regexp.MustCompile(`\[sound:[^\]]*\]`)
	styleRe    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptRe   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	blockTagRe = regexp.MustCompile(`(?i)<(?:br|/?div|/?p|/?li|/?tr|hr)[^>]*>`)
	anyTagRe   = regexp.MustCompile(`<[^>]+>`)

	// Review-screen artifacts that are not card content. Matched
	// case-insensitively in place; byte offsets from a case-folded copy
	// would not line up with the original for non-ASCII text.
	hintRe = regexp.MustCompile(`(?i)type in the answer|show answer`)
)

// CleanCardText converts card HTML into speakable plain text: media tags,
// style and script blocks, and markup are removed, entities are decoded,
// and whitespace is collapsed.
func CleanCardText(raw string) string {
	text := soundTagRe.ReplaceAllString(raw, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = scriptRe.ReplaceAllString(text, " ")
	text = blockTagRe.ReplaceAllString(text, " ")
	text = anyTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = hintRe.ReplaceAllString(text, " ")

	return strings.Join(strings.Fields(text), " ")
}
