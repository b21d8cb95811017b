package chunking

// hybridPieces packs paragraphs up to size characters like the paragraph strategy, and splits
// any paragraph longer than size with the fixed-size windowing. Pieces from a split paragraph
// keep offsets into the full text and are numbered in document order with the rest.
func (e *Engine) hybridPieces(r []rune, size, overlap int, filename string) []piece {
	var pieces []piece
	var run []span
	flush := func() {
		if len(run) > 0 {
			pieces = append(pieces, accumulate(r, run, func(curLen, paraLen int) bool {
				return curLen+paraLen+2 > size
			})...)
			run = run[:0]
		}
	}
	for _, p := range paragraphSpans(r) {
		if p.end-p.start > size {
			flush()
			pieces = append(pieces, e.fixedPieces(r, p.start, p.end, size, overlap, filename)...)
			continue
		}
		run = append(run, p)
	}
	flush()
	return pieces
}
