// Package chunking splits long text into overlapping segments that end on
// natural boundaries (sentence ends, newlines, spaces) where possible.
package chunking

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is the default maximum chunk length in bytes.
	DefaultMaxSize = 1000
	// DefaultOverlap is the default number of bytes shared by consecutive chunks.
	DefaultOverlap = 100
)

// boundaries are tried in order; the first with a match past the window midpoint wins.
var boundaries = []string{". ", "? ", "! ", "\n", " "}

// Chunk is one segment of the source text.
// Start and End are byte offsets of the untrimmed window in the source.
type Chunk struct {
	Text  string
	Index int
	Start int
	End   int
}

type options struct {
	maxSize int
	overlap int
}

// Option configures Split.
type Option func(*options)

// WithMaxSize sets the maximum chunk length. Values < 1 are ignored.
func WithMaxSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks. Negative values are ignored.
func WithOverlap(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.overlap = n
		}
	}
}

// Split breaks text into chunks of at most maxSize bytes.
//
// Text that already fits is returned as a single whitespace-trimmed chunk (empty
// text included). Longer text is scanned window by window: each window is cut at
// the last preferred boundary found past its midpoint, or hard-cut at maxSize
// (moved back to a rune start) when none qualifies. Emitted chunks are
// whitespace-trimmed and the next window starts overlap bytes before the previous
// cut. Windows holding only whitespace are skipped, so Index stays dense; text that
// is nothing but whitespace still yields one empty chunk.
func Split(text string, opts ...Option) []Chunk {
	o := options{maxSize: DefaultMaxSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(&o)
	}

	if o.overlap >= o.maxSize {
		o.overlap = o.maxSize - 1
	}

	if len(text) <= o.maxSize {
		return []Chunk{{Text: strings.TrimSpace(text), Index: 0, Start: 0, End: len(text)}}
	}

	var chunks []Chunk

	start := 0
	for start < len(text) {
		end := start + o.maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end, o.maxSize)
		}

		if trimmed := strings.TrimSpace(text[start:end]); trimmed != "" {
			chunks = append(chunks, Chunk{
				Text:  trimmed,
				Index: len(chunks),
				Start: start,
				End:   end,
			})
		}

		if end == len(text) {
			break
		}

		next := end - o.overlap
		if next <= start {
			next = end
		}

		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}

		start = next
	}

	if len(chunks) == 0 {
		return []Chunk{{Text: "", Index: 0, Start: 0, End: len(text)}}
	}

	return chunks
}

// cutPoint returns where the window text[start:end] should end.
func cutPoint(text string, start, end, maxSize int) int {
	window := text[start:end]
	threshold := maxSize / 2

	for _, b := range boundaries {
		pos := strings.LastIndex(window, b)
		if pos > threshold {
			return start + pos + 1
		}
	}

	cut := end
	for cut > start && !utf8.RuneStart(text[cut]) {
		cut--
	}

	if cut == start {
		// maxSize is smaller than the rune at start; take the whole rune.
		_, size := utf8.DecodeRuneInString(text[start:])
		cut = start + size
	}

	return cut
}
