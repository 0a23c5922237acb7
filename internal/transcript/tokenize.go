package transcript

import (
	"strings"
	"unicode"
)

// acronyms are upper-cased wherever they appear.
var acronyms = map[string]struct{}{
	"IMU": {}, "UX": {}, "UXR": {}, "SWE": {}, "RS": {}, "PM": {},
}

// maxModelCodeLen bounds the letter+digit words treated as model names
// ("df1" → "DF1").
const maxModelCodeLen = 5

var (
	speechPunctuation  = strings.NewReplacer(charsToEmpty(".,/#!$%^&*;:{}=-_`~()")...)
	easternPunctuation = strings.NewReplacer(charsToEmpty(".,，。")...)
)

func charsToEmpty(chars string) []string {
	var pairs []string
	for _, r := range chars {
		pairs = append(pairs, string(r), "")
	}
	return pairs
}

// IsEastern reports whether s contains a CJK ideograph, in which case words
// are not space-delimited and tokens are single characters.
func IsEastern(s string) bool {
	for _, r := range s {
		if r >= 0x3400 && r <= 0x9FBF {
			return true
		}
	}
	return false
}

// Tokenize splits text into tokens.
//
// Newlines stay attached to the preceding word. The first token and every
// token following a sentence end is capitalized. Whitespace-only input
// yields an empty sequence.
func Tokenize(text string, eastern bool) []*Token {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", "\n "))
	if text == "" {
		return []*Token{}
	}

	var words []string
	if eastern {
		for _, r := range text {
			if r == ' ' || r == '\t' {
				continue
			}
			words = append(words, string(r))
		}
	} else {
		words = strings.FieldsFunc(text, func(r rune) bool { return r == ' ' || r == '\t' })
	}

	tokens := make([]*Token, 0, len(words))
	for i, w := range words {
		tok := NewToken(w, eastern)
		if i == 0 || tokens[i-1].EndsSentence() {
			tok.capitalize()
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// formatRawWord upper-cases known acronyms and short model codes.
func formatRawWord(raw string, eastern bool) string {
	if eastern {
		return raw
	}
	upper := strings.ToUpper(raw)
	if _, ok := acronyms[upper]; ok {
		return upper
	}
	if isModelCode(raw) {
		return upper
	}
	return raw
}

// isModelCode matches letters followed by digits, such as "df1" or "rb12".
func isModelCode(s string) bool {
	if len(s) < 2 || len(s) > maxModelCodeLen {
		return false
	}
	i := 0
	for i < len(s) && s[i] < 0x80 && unicode.IsLetter(rune(s[i])) {
		i++
	}
	if i == 0 || i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func normalize(raw string, eastern bool) string {
	if eastern {
		return strings.TrimSpace(easternPunctuation.Replace(raw))
	}
	return strings.TrimSpace(speechPunctuation.Replace(strings.ToLower(raw)))
}
