package transcript

import "strings"

// Bullet separates items in bulleted summaries.
const Bullet = "•"

const maxSummaryBullets = 6

const (
	sentenceEnds      = ".?!"
	pausePunctuation  = ",:\"'();"
	allPunctuationSet = ",:\"'().?!;"
)

// CleanSummaryReply turns a raw language-model reply into displayable
// summary text.
//
// Bulleted replies keep at most six bullets, and anything after "speech:"
// inside a bullet is dropped. Prose replies keep only the first line, lose a
// leading punctuation mark, are cut after the last complete sentence and end
// with a period.
func CleanSummaryReply(reply string) string {
	if strings.TrimSpace(reply) == "" {
		return ""
	}

	if strings.Contains(reply, Bullet) {
		parts := strings.Split(reply, Bullet)
		if len(parts) > maxSummaryBullets {
			parts = parts[:maxSummaryBullets]
		}
		for i, p := range parts {
			if k := strings.Index(p, "speech:"); k >= 0 {
				parts[i] = p[:k]
			}
		}
		out := strings.Join(parts, Bullet)
		return strings.Replace(out, " "+Bullet, "\n"+Bullet, 1)
	}

	ans, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	if ans != "" && strings.ContainsRune(allPunctuationSet, rune(ans[0])) {
		ans = strings.TrimSpace(ans[1:])
	}

	if ans != "" {
		if k := strings.LastIndexAny(ans, sentenceEnds); k >= 0 {
			ans = ans[:k+1]
		}
		last := rune(ans[len(ans)-1])
		switch {
		case strings.ContainsRune(pausePunctuation, last):
			ans = ans[:len(ans)-1] + "."
		case !strings.ContainsRune(allPunctuationSet, last):
			ans += "."
		}
	}
	return strings.TrimSpace(CapitalizeFirst(ans))
}
