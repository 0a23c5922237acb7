package transcript

import "strings"

// Capitalizer rewrites known words to their proper spelling ("google" →
// "Google", "iphone" → "iPhone"). Keys are matched case-insensitively
// against the word without surrounding punctuation.
type Capitalizer struct {
	words map[string]string
}

// NewCapitalizer builds a capitalizer from a dictionary of spoken form to
// proper form. An empty value means the key already is the proper form.
func NewCapitalizer(dict map[string]string) *Capitalizer {
	c := &Capitalizer{words: make(map[string]string, len(dict))}
	for k, v := range dict {
		if v == "" {
			v = k
		}
		c.words[strings.ToLower(k)] = v
	}
	return c
}

// Len returns the number of known words.
func (c *Capitalizer) Len() int {
	if c == nil {
		return 0
	}
	return len(c.words)
}

// Apply rewrites tokens that have not been laid out yet and returns how many
// changed. Displayed words are left alone.
func (c *Capitalizer) Apply(tokens []*Token) int {
	if c.Len() == 0 {
		return 0
	}
	changed := 0
	for _, t := range tokens {
		if t.LaidOut || t.Eastern || t.Normalized == "" {
			continue
		}
		lead, word, trail := splitPunct(t.Raw)
		proper, ok := c.words[strings.ToLower(word)]
		if !ok || proper == word {
			continue
		}
		t.Raw = lead + proper + trail
		changed++
	}
	return changed
}

// splitPunct separates leading and trailing punctuation (and a trailing
// line break) from the word in s.
func splitPunct(s string) (lead, word, trail string) {
	isPunct := func(b byte) bool {
		return b == '\n' || strings.IndexByte(`.,/#!$%^&*;:{}=_~()"'?`, b) >= 0
	}
	i, j := 0, len(s)
	for i < j && isPunct(s[i]) {
		i++
	}
	for j > i && isPunct(s[j-1]) {
		j--
	}
	return s[:i], s[i:j], s[j:]
}
