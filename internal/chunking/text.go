package chunking

import (
	"strings"
	"unicode"
)

// Sanitize drops invalid UTF-8 sequences and normalizes line endings to "\n".
func Sanitize(text string) string {
	text = strings.ToValidUTF8(text, "")
	if strings.Contains(text, "\r") {
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	return text
}

type span struct {
	start, end int
}

func isBlank(r []rune, lo, hi int) bool {
	for i := lo; i < hi; i++ {
		if !unicode.IsSpace(r[i]) {
			return false
		}
	}
	return true
}

// trim shrinks [lo, hi) past leading and trailing whitespace.
func trim(r []rune, lo, hi int) (int, int) {
	for lo < hi && unicode.IsSpace(r[lo]) {
		lo++
	}
	for hi > lo && unicode.IsSpace(r[hi-1]) {
		hi--
	}
	return lo, hi
}

// lastIndex returns the start of the last occurrence of pat lying entirely within r[lo:hi], or -1.
func lastIndex(r []rune, lo, hi int, pat string) int {
	p := []rune(pat)
	for i := hi - len(p); i >= lo; i-- {
		match := true
		for j := range p {
			if r[i+j] != p[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// paragraphSpans splits r on blank-line separators (a newline, optional whitespace, a newline)
// and returns the trimmed, non-empty paragraphs.
func paragraphSpans(r []rune) []span {
	var spans []span
	add := func(lo, hi int) {
		if lo, hi = trim(r, lo, hi); lo < hi {
			spans = append(spans, span{lo, hi})
		}
	}
	begin := 0
	for i := 0; i < len(r); i++ {
		if r[i] != '\n' {
			continue
		}
		last := -1
		for j := i + 1; j < len(r) && unicode.IsSpace(r[j]); j++ {
			if r[j] == '\n' {
				last = j
			}
		}
		if last < 0 {
			continue
		}
		add(begin, i)
		begin = last + 1
		i = last
	}
	add(begin, len(r))
	return spans
}

func isTerminator(c rune) bool {
	return c == '.' || c == '!' || c == '?'
}

// sentenceSpans splits r on whitespace runs that follow '.', '!' or '?'
// and returns the trimmed, non-empty sentences.
func sentenceSpans(r []rune) []span {
	var spans []span
	begin := 0
	for i := 1; i < len(r); i++ {
		if !unicode.IsSpace(r[i]) || !isTerminator(r[i-1]) {
			continue
		}
		j := i
		for j < len(r) && unicode.IsSpace(r[j]) {
			j++
		}
		if lo, hi := trim(r, begin, i); lo < hi {
			spans = append(spans, span{lo, hi})
		}
		begin = j
		i = j
	}
	if lo, hi := trim(r, begin, len(r)); lo < hi {
		spans = append(spans, span{lo, hi})
	}
	return spans
}

// joinSpans renders spans of r joined by sep and returns the rune length of the result.
func joinSpans(r []rune, spans []span, sep string) (string, int) {
	var b strings.Builder
	n := 0
	for i, s := range spans {
		if i > 0 {
			b.WriteString(sep)
			n += len([]rune(sep))
		}
		b.WriteString(string(r[s.start:s.end]))
		n += s.end - s.start
	}
	return b.String(), n
}
