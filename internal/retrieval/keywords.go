package retrieval

import (
	"errors"
	"strings"
)

// ErrNoKeywords is returned by the keyword tier when the query has no usable keywords.
var ErrNoKeywords = errors.New("no keywords in query")

var stopWords = toSet(strings.Fields(`
a an the and or but is are was were be been being in on at to for with by about against
between into through during before after above below from up down of off over under again
further then once here there when where why how all any both each few more most other some
such no nor not only own same so than too very s t can will just don should now what who
whom this that these those i me my myself we our ours ourselves you your yours yourself
yourselves he him his himself she her hers herself it its itself they them their theirs
themselves which whose if else while as until because since do does did having has have
had could would shall might may must`))

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ExtractKeywords lowercases query, splits on whitespace and keeps tokens longer than two
// characters that are not stop words, de-duplicated in first-seen order.
func ExtractKeywords(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// countMatches returns how many keywords occur in text, case-insensitively.
func countMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
