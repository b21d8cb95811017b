package chunking

import "go.uber.org/zap"

// maxBreakSearch bounds how far back from a window end a break point is looked for.
const maxBreakSearch = 10000

// fixedPieces slides a size-character window over r[lo:hi], preferring to end each window
// on a paragraph break, then a sentence end, then a space, as long as the break lies past
// the window midpoint. Offsets are absolute in r.
func (e *Engine) fixedPieces(r []rune, lo, hi, size, overlap int, filename string) []piece {
	var pieces []piece
	maxIter := 2 * (hi - lo)
	iter := 0
	start := lo
	for start < hi {
		if iter >= maxIter {
			e.logger.Warn("fixed-size chunking hit iteration ceiling",
				zap.String("filename", filename),
				zap.Int("iterations", iter),
				zap.Int("position", start))
			break
		}
		iter++

		end := min(start+size, hi)
		if end < hi {
			end = breakPoint(r, start, end, size)
		}
		if s, t := trim(r, start, end); s < t {
			pieces = append(pieces, piece{text: string(r[s:t]), start: s, end: t})
		}
		if end >= hi {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + max(1, size/10)
		}
		start = next
	}
	return pieces
}

func breakPoint(r []rune, start, end, size int) int {
	searchStart := end - min(end-start, maxBreakSearch)
	half := start + size/2

	if p := lastIndex(r, searchStart, end, "\n\n"); p > half {
		return p + 2
	}
	p := max(
		lastIndex(r, searchStart, end, ". "),
		lastIndex(r, searchStart, end, "! "),
		lastIndex(r, searchStart, end, "? "),
	)
	if p > half {
		return p + 2
	}
	if p := lastIndex(r, searchStart, end, " "); p > half {
		return p + 1
	}
	return end
}
