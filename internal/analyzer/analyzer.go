// Package analyzer profiles the structure of document text and recommends chunking parameters.
package analyzer

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// TableRowConfidence is the fixed confidence attached to table-row detection.
// Adjacent double-space alignment over- and under-detects, so the count is a weak signal.
const TableRowConfidence = 0.3

const sampleLimit = 5

var (
	listPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*\d+\.\s`),
		regexp.MustCompile(`^\s*[a-z]\)\s`),
		regexp.MustCompile(`^\s*[\-\*•]\s`),
	}
	mathPattern  = regexp.MustCompile(`[=\+\-\*\/\^]+[\d\.]+`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

	codeIndicators = []string{"{", "}", "()", "[]", ";", "==", "!=", "+=", "-=", "<=", ">="}
)

// Profile is the statistical and heuristic summary of a document's text.
type Profile struct {
	Text       TextStats    `json:"text_stats"`
	Paragraphs Distribution `json:"paragraph_stats"`
	Sentences  Distribution `json:"sentence_stats"`
	Structure  Structure    `json:"structure"`
	Features   Features     `json:"features"`
	Sample     Samples      `json:"sample"`
}

// TextStats holds whole-text counts.
type TextStats struct {
	CharCount        int     `json:"char_count"`
	WordCount        int     `json:"word_count"`
	UniqueWords      int     `json:"unique_words"`
	LexicalDiversity float64 `json:"lexical_diversity"`
	ParagraphCount   int     `json:"paragraph_count"`
	SentenceCount    int     `json:"sentence_count"`
}

// Distribution summarizes the lengths (in characters) and word counts of a set of text units.
type Distribution struct {
	Count        int     `json:"count"`
	AvgLength    float64 `json:"avg_length"`
	MedianLength float64 `json:"median_length"`
	MaxLength    int     `json:"max_length"`
	MinLength    int     `json:"min_length"`
	AvgWords     float64 `json:"avg_words"`
	MedianWords  float64 `json:"median_words"`
}

// Structure holds the counts of detected structural signals.
type Structure struct {
	PotentialHeaders int     `json:"potential_headers_count"`
	ListItems        int     `json:"list_items_count"`
	TableRows        int     `json:"table_rows_count"`
	TableConfidence  float64 `json:"table_rows_confidence"`
	CodeBlocks       int     `json:"code_blocks_count"`
}

// Features flags content types found anywhere in the text.
type Features struct {
	HasMath   bool `json:"has_math"`
	HasURLs   bool `json:"has_urls"`
	HasEmails bool `json:"has_emails"`
}

// Samples holds the first few paragraphs behind each structural signal.
type Samples struct {
	Headers    []string `json:"headers"`
	ListItems  []string `json:"list_items"`
	TableRows  []string `json:"table_rows"`
	CodeBlocks []string `json:"code_blocks"`
}

// Analyze profiles text. Paragraphs are the non-empty lines of the text.
// Empty text yields a zero profile.
func Analyze(text string) *Profile {
	p := &Profile{Sample: Samples{Headers: []string{}, ListItems: []string{}, TableRows: []string{}, CodeBlocks: []string{}}}
	if text == "" {
		return p
	}

	words := wordsOf(text)
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}

	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	sentences := splitSentences(text)

	p.Text = TextStats{
		CharCount:      runeLen(text),
		WordCount:      len(words),
		UniqueWords:    len(unique),
		ParagraphCount: len(paragraphs),
		SentenceCount:  len(sentences),
	}
	if len(words) > 0 {
		p.Text.LexicalDiversity = float64(len(unique)) / float64(len(words))
	}
	p.Paragraphs = distribution(paragraphs)
	p.Sentences = distribution(sentences)

	var headers, lists, tables, code []string
	for i, para := range paragraphs {
		n := runeLen(para)
		if n < 100 && len(strings.Fields(para)) < 15 && i < len(paragraphs)-1 && runeLen(paragraphs[i+1]) > 2*n {
			headers = append(headers, para)
		}
		for _, re := range listPatterns {
			if re.MatchString(para) {
				lists = append(lists, para)
				break
			}
		}
		if strings.Count(para, "  ") >= 2 && i > 0 {
			prev := paragraphs[i-1]
			if strings.Contains(prev, "  ") && abs(runeIndex(para, "  ")-runeIndex(prev, "  ")) < 3 {
				tables = append(tables, para)
			}
		}
		if strings.HasPrefix(para, "    ") || strings.HasPrefix(para, "\t") {
			if slices.ContainsFunc(codeIndicators, func(ind string) bool { return strings.Contains(para, ind) }) {
				code = append(code, para)
			}
		}
	}

	p.Structure = Structure{
		PotentialHeaders: len(headers),
		ListItems:        len(lists),
		TableRows:        len(tables),
		TableConfidence:  TableRowConfidence,
		CodeBlocks:       len(code),
	}
	p.Features = Features{
		HasMath:   mathPattern.MatchString(text),
		HasURLs:   urlPattern.MatchString(text),
		HasEmails: emailPattern.MatchString(text),
	}
	p.Sample = Samples{
		Headers:    head(headers),
		ListItems:  head(lists),
		TableRows:  head(tables),
		CodeBlocks: head(code),
	}
	return p
}

func distribution(units []string) Distribution {
	if len(units) == 0 {
		return Distribution{}
	}
	lengths := make([]int, len(units))
	wordCounts := make([]int, len(units))
	for i, u := range units {
		lengths[i] = runeLen(u)
		wordCounts[i] = len(wordsOf(u))
	}
	return Distribution{
		Count:        len(units),
		AvgLength:    mean(lengths),
		MedianLength: median(lengths),
		MaxLength:    slices.Max(lengths),
		MinLength:    slices.Min(lengths),
		AvgWords:     mean(wordCounts),
		MedianWords:  median(wordCounts),
	}
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordsOf returns the maximal runs of word characters.
func wordsOf(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWord(r) })
}

// splitSentences splits on a single whitespace character that follows '.', '?' or '!',
// except after abbreviations shaped like "e.g." or "Mr.". Empty pieces are kept.
func splitSentences(text string) []string {
	r := []rune(text)
	var out []string
	begin := 0
	for i := 1; i < len(r); i++ {
		if !unicode.IsSpace(r[i]) || !(r[i-1] == '.' || r[i-1] == '?' || r[i-1] == '!') {
			continue
		}
		if i >= 4 && isWord(r[i-4]) && r[i-3] == '.' && isWord(r[i-2]) {
			continue
		}
		if i >= 3 && r[i-3] >= 'A' && r[i-3] <= 'Z' && r[i-2] >= 'a' && r[i-2] <= 'z' && r[i-1] == '.' {
			continue
		}
		out = append(out, string(r[begin:i]))
		begin = i + 1
	}
	return append(out, string(r[begin:]))
}

func runeLen(s string) int {
	return len([]rune(s))
}

func runeIndex(s, sub string) int {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return runeLen(s[:i])
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func median(xs []int) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return float64(s[mid])
	}
	return float64(s[mid-1]+s[mid]) / 2
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func head(xs []string) []string {
	if len(xs) > sampleLimit {
		xs = xs[:sampleLimit]
	}
	if xs == nil {
		return []string{}
	}
	return xs
}
