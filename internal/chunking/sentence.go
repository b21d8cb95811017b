package chunking

// sentencePieces groups sentences into chunks of at most size characters. Each new chunk is
// seeded with trailing sentences of the previous one whose joined length fits in overlap.
// Sentences longer than size are first cut with the fixed-size windowing.
func (e *Engine) sentencePieces(r []rune, size, overlap int, filename string) []piece {
	var sentences []span
	for _, s := range sentenceSpans(r) {
		if s.end-s.start <= size {
			sentences = append(sentences, s)
			continue
		}
		for _, pc := range e.fixedPieces(r, s.start, s.end, size, 0, filename) {
			sentences = append(sentences, span{pc.start, pc.end})
		}
	}

	var pieces []piece
	var cur []span
	curLen := 0
	for _, s := range sentences {
		n := s.end - s.start
		if len(cur) > 0 && curLen+n > size {
			text, _ := joinSpans(r, cur, " ")
			pieces = append(pieces, piece{
				text:      text,
				start:     cur[0].start,
				end:       cur[len(cur)-1].end,
				sentences: len(cur),
			})

			var tail []span
			tailLen := 0
			for i := len(cur) - 1; i >= 0; i-- {
				l := cur[i].end - cur[i].start
				if tailLen+l > overlap {
					break
				}
				tail = append([]span{cur[i]}, tail...)
				if tailLen > 0 {
					tailLen++
				}
				tailLen += l
			}
			cur = append(tail, s)
			curLen = n
			if tailLen > 0 {
				curLen += tailLen + 1
			}
			continue
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, s)
		curLen += n
	}
	if len(cur) > 0 {
		text, _ := joinSpans(r, cur, " ")
		pieces = append(pieces, piece{
			text:      text,
			start:     cur[0].start,
			end:       cur[len(cur)-1].end,
			sentences: len(cur),
		})
	}
	return pieces
}
