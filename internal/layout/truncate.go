package layout

import "strings"

const (
	sentencePunctuation = "!?.,:"
	pausePunctuation    = ",:\"'();"
)

// CutAtPunctuation shortens wrapped text to the last punctuation mark before
// its maxLines-th line break. A cut at a pause mark such as a comma ends in
// "..." instead. Text with fewer line breaks, or without punctuation before
// the break, is returned unchanged.
func CutAtPunctuation(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	b := -1
	for n := 0; n < maxLines; n++ {
		k := strings.IndexByte(s[b+1:], '\n')
		if k < 0 {
			return s
		}
		b += k + 1
	}
	q := strings.LastIndexAny(s[:b], sentencePunctuation)
	if q < 0 {
		return s
	}
	if strings.IndexByte(pausePunctuation, s[q]) >= 0 {
		return s[:q] + "..."
	}
	return s[:q+1]
}

// Lines splits rendered text into its lines. Empty text has no lines.
func Lines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
