// Package text normalizes user-supplied text before it leaves the gateway.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// controlCharsRegex matches ASCII control characters except tab and newline.
	controlCharsRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// multipleNewlinesRegex matches runs of three or more newlines.
	multipleNewlinesRegex = regexp.MustCompile(`\n{3,}`)

	// invisibleReplacer drops zero-width and directional marks and maps the
	// Unicode line and paragraph separators to newlines.
	invisibleReplacer = strings.NewReplacer(
		"\u200B", "", // zero width space
		"\u200C", "", // zero width non-joiner
		"\u200D", "", // zero width joiner
		"\u2060", "", // word joiner
		"\uFEFF", "", // byte order mark
		"\u00AD", "", // soft hyphen
		"\u200E", "", // left-to-right mark
		"\u200F", "", // right-to-left mark
		"\u202A", "", "\u202B", "", "\u202C", "", "\u202D", "", "\u202E", "",
		"\u2066", "", "\u2067", "", "\u2068", "", "\u2069", "",
		"\u2028", "\n", // line separator
		"\u2029", "\n", // paragraph separator
	)
)

// normalizeLineEndings converts CRLF and CR to LF.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// collapseSpaces collapses every whitespace run into a single space and trims the result.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteRune(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimSpace(b.String())
}

// SingleLine returns s as one trimmed line: invisible characters removed,
// control characters and line breaks turned into spaces. Use it for header
// values such as an email subject.
func SingleLine(s string) string {
	s = invisibleReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, " ")
	return collapseSpaces(s)
}

// Body normalizes a multi-line text: LF line endings, no invisible or
// control characters, trailing spaces trimmed per line and at most one blank
// line between paragraphs. Leading indentation is kept.
func Body(s string) string {
	s = normalizeLineEndings(s)
	s = invisibleReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	s = strings.Join(lines, "\n")
	s = multipleNewlinesRegex.ReplaceAllString(s, "\n\n")

	return strings.Trim(s, "\n")
}
