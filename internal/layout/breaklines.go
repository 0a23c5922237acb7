package layout

import (
	"strings"
)

// BreakLines wraps free text such as a summary into lines no wider than
// maxWidth. Existing line breaks are kept. Eastern text breaks between any two
// characters; other text breaks at the last space of the line, or is cut
// after [MaxCharsPerWord] characters when the line has no space.
func BreakLines(text string, maxWidth float64, m Measurer) string {
	if maxWidth <= 0 {
		return text
	}
	paragraphs := strings.Split(text, "\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		out = append(out, wrapParagraph([]rune(p), maxWidth, m)...)
	}
	return strings.Join(out, "\n")
}

func wrapParagraph(rs []rune, maxWidth float64, m Measurer) []string {
	var (
		lines []string
		line  []rune
	)
	for _, r := range rs {
		if len(line) == 0 && r == ' ' {
			continue
		}
		line = append(line, r)
		for len(line) > 1 && m.Measure(string(line)) > maxWidth {
			cut, next := breakPoint(line)
			lines = append(lines, strings.TrimRight(string(line[:cut]), " "))
			line = trimLeadingSpaces(line[next:])
		}
	}
	if len(line) > 0 {
		lines = append(lines, strings.TrimRight(string(line), " "))
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// breakPoint returns where an overflowing line ends and where the rest
// starts.
func breakPoint(line []rune) (cut, next int) {
	n := len(line)
	if isEastern(string(line)) {
		return n - 1, n - 1
	}
	for k := n - 1; k > 0; k-- {
		if line[k] == ' ' {
			return k, k + 1
		}
	}
	cut = min(n-1, MaxCharsPerWord)
	return cut, cut
}

func trimLeadingSpaces(rs []rune) []rune {
	i := 0
	for i < len(rs) && rs[i] == ' ' {
		i++
	}
	return append([]rune(nil), rs[i:]...)
}
