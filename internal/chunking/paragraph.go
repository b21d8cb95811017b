package chunking

// paragraphPieces packs consecutive paragraphs into chunks, starting a new chunk when the
// next paragraph would take the accumulated text past the paragraph ceiling.
// A single paragraph longer than the ceiling becomes one chunk on its own.
func (e *Engine) paragraphPieces(r []rune) []piece {
	return accumulate(r, paragraphSpans(r), func(curLen, paraLen int) bool {
		return curLen+paraLen > e.paragraphCeiling
	})
}

// accumulate joins paragraph spans with blank lines, flushing whenever full reports true.
func accumulate(r []rune, paras []span, full func(curLen, paraLen int) bool) []piece {
	var pieces []piece
	var cur []span
	curLen := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		text, _ := joinSpans(r, cur, "\n\n")
		pieces = append(pieces, piece{text: text, start: cur[0].start, end: cur[len(cur)-1].end})
		cur = cur[:0]
		curLen = 0
	}
	for _, p := range paras {
		n := p.end - p.start
		if len(cur) > 0 && full(curLen, n) {
			flush()
		}
		if len(cur) > 0 {
			curLen += 2
		}
		cur = append(cur, p)
		curLen += n
	}
	flush()
	return pieces
}
