package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

// PhraseRule rewrites every match of Pattern with Replacement. Replacement
// may reference capture groups with $1 syntax.
type PhraseRule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	re   *regexp.Regexp
	repl string
}

// PhraseRewriter fixes phrases recognizers reliably get wrong, such as spoken
// go links ("go slash team dash docs" → "go/team-docs") and product names.
// It is safe for concurrent use after construction.
type PhraseRewriter struct {
	rules []compiledRule
}

var (
	goLinkPrefix   = regexp.MustCompile(`(?i)go\s+[fs][lm]ash\s+`)
	goLinkDash     = regexp.MustCompile(`(?i) dash `)
	goLinkUnder    = regexp.MustCompile(` underscore `)
	goLinkWordTail = regexp.MustCompile(`go/(\S+)`)
)

// NewPhraseRewriter compiles rules. Patterns are case-insensitive unless
// they set their own flags.
func NewPhraseRewriter(rules []PhraseRule) (*PhraseRewriter, error) {
	pr := &PhraseRewriter{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		pattern := r.Pattern
		if !strings.HasPrefix(pattern, "(?") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("transcript: phrase rule %d: %w", i, err)
		}
		pr.rules = append(pr.rules, compiledRule{re: re, repl: r.Replacement})
	}
	return pr, nil
}

// Rewrite applies the go-link rules followed by the configured rules.
// A nil rewriter only applies the go-link rules.
func (pr *PhraseRewriter) Rewrite(s string) string {
	s = goLinkPrefix.ReplaceAllString(s, "go/")
	if goLinkWordTail.MatchString(s) {
		s = goLinkDash.ReplaceAllString(s, "-")
		s = goLinkUnder.ReplaceAllString(s, "_")
	}
	if pr == nil {
		return s
	}
	for _, r := range pr.rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

var contractions = strings.NewReplacer(
	"isn't", "is not", "hasn't", "has not", "hadn't", "had not",
	"haven't", "have not", "didn't", "did not", "wouldn't", "would not",
	"can't", "can not", "she's", "she is", "there's", "there is",
	"he's", "he is", "it's", "it is", "who's", "who is",
	"I'm", "I am", "I'll", "I will", "you'll", "you will",
	"she'll", "she will", "we'll", "we will", "they'll", "they will",
	"I'd", "I would", "you'd", "you would", "he'd", "he would",
	"we'd", "we would", "they'd", "they would", "I've", "I have",
	"you've", "you have", "we've", "we have", "they've", "they have",
	"you're", "you are", "they're", "they are", "we're", "we are",
)

// UnifyApostrophes expands common English contractions. Translation output
// uses several apostrophe styles, so expanding them keeps token comparison
// stable.
func UnifyApostrophes(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return contractions.Replace(s)
}
