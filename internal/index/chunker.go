package index

import (
	"strings"
	"unicode"
)

// Piece is one window of extracted text. Offsets are rune positions into the
// source document.
type Piece struct {
	Text  string
	Start int
	End   int
}

// breakSearchWindow is the fraction of the chunk tail scanned for a natural
// break. A window ending mid-sentence is only accepted when no paragraph or
// sentence boundary falls inside this region.
const breakSearchWindow = 0.2

// Split cuts text into overlapping windows of roughly size runes, preferring
// to end a window at a paragraph break, then at a sentence break, before
// falling back to a hard cut. Windows overlap by overlap runes so retrieval
// does not lose context that straddles a boundary.
func Split(text string, size, overlap int) []Piece {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var pieces []Piece
	start := 0

	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBreak(runes, start, end)
		}

		// Trim whitespace off the window edges, moving the offsets with it
		// so Start and End always delimit exactly Text.
		lo, hi := start, end
		for lo < hi && unicode.IsSpace(runes[lo]) {
			lo++
		}
		for hi > lo && unicode.IsSpace(runes[hi-1]) {
			hi--
		}
		if lo < hi {
			pieces = append(pieces, Piece{Text: string(runes[lo:hi]), Start: lo, End: hi})
		}

		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return pieces
}

// adjustBreak moves end backwards onto a paragraph or sentence boundary when
// one exists within the tail search window. Returns the original end otherwise.
func adjustBreak(runes []rune, start, end int) int {
	floor := end - int(float64(end-start)*breakSearchWindow)
	if floor <= start {
		return end
	}

	tail := string(runes[floor:end])

	// Paragraph breaks win over sentence breaks.
	if i := strings.LastIndex(tail, "\n\n"); i >= 0 {
		return floor + len([]rune(tail[:i]))
	}

	best := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n", "\n"} {
		if i := strings.LastIndex(tail, sep); i >= 0 {
			// Cut after the punctuation, keeping it with the finished sentence.
			cut := i + len(sep)
			if sep == "\n" {
				cut = i
			}
			if cut > best {
				best = cut
			}
		}
	}
	if best > 0 {
		return floor + len([]rune(tail[:best]))
	}

	return end
}
