package transcript

import (
	"regexp"
	"strings"
)

var (
	questionWords = []string{
		"who", "what", "when", "where", "why", "how", "which", "won't",
		"can't", "isn't", "aren't", "is", "do", "does", "will", "can",
		"shall", "could", "would",
	}
	exclamatoryWords = []string{
		"hi", "hey", "hello", "wow", "amazing", "great", "good", "awesome",
		"beautiful", "wonderful", "perfect", "splendid", "ok", "let's",
		"welcome", "thank", "cool", "super",
	}
	easternQuestionWords    = []string{"吗", "什么", "难道", "是不是"}
	easternExclamatoryWords = []string{"哇", "真", "啦", "恭喜", "谢"}
)

// Punctuate adds sentence punctuation to recognizer output that has none.
//
// A final Latin-script hypothesis gets a question mark when it starts with a
// question word, an exclamation mark when it contains an exclamatory word and
// a period otherwise. Partial Latin hypotheses are left open. Eastern text
// always gets full-width punctuation. The first character is capitalized.
func Punctuate(s string, final bool) string {
	if s == "" {
		return s
	}
	if endsSentence(s) {
		return CapitalizeFirst(s)
	}
	if IsEastern(s) {
		switch {
		case containsAny(s, easternQuestionWords):
			s += "？"
		case containsAny(s, easternExclamatoryWords):
			s += "！"
		default:
			s += "。"
		}
		return CapitalizeFirst(s)
	}
	if final {
		words := strings.Fields(strings.ToLower(s))
		switch {
		case len(words) > 0 && contains(questionWords, words[0]):
			s += "?"
		case hasAnyWord(words, exclamatoryWords):
			s += "!"
		default:
			s += "."
		}
	}
	return CapitalizeFirst(s)
}

func endsSentence(s string) bool {
	for _, p := range []string{".", "?", "!", "。", "？", "！"} {
		if strings.HasSuffix(s, p) {
			return true
		}
	}
	return false
}

func contains(list []string, w string) bool {
	for _, l := range list {
		if l == w {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyWord(words, list []string) bool {
	for _, w := range words {
		if contains(list, strings.Trim(w, ".,!?")) {
			return true
		}
	}
	return false
}

// CountWords counts words, or characters for Eastern text.
func CountWords(s string) int {
	if IsEastern(s) {
		n := 0
		for _, r := range s {
			if r != ' ' && r != '\n' {
				n++
			}
		}
		return n
	}
	return len(strings.Fields(s))
}

var sentenceStart = regexp.MustCompile(`(^|[.?!] )(\w)`)

// CapitalizeSentences upper-cases the first letter of every sentence.
func CapitalizeSentences(s string) string {
	return sentenceStart.ReplaceAllStringFunc(s, strings.ToUpper)
}
