// Package chunker splits a section's cleaned text into bounded retrieval
// chunks. Chunks are contiguous substrings of the section text: concatenating
// them in sequence reproduces the text exactly, with no gaps and no overlap.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls chunking behavior.
type Config struct {
	// MaxChars is the maximum chunk size in bytes. Chunks never split a
	// word, except for a single word longer than the limit, which is cut
	// at the limit.
	MaxChars int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxChars: 2000}
}

// Span is one cleaned text span with its source page.
type Span struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Chunk is a bounded slice of a section's text stream.
type Chunk struct {
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	PageStart   int    `json:"page_start"`
	PageEnd     int    `json:"page_end"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

type spanRange struct {
	start, end int // byte offsets into the section text, end exclusive
	page       int
}

// SectionText joins span texts with a single newline. This is the canonical
// full text of a section; Split partitions exactly this string.
func SectionText(spans []Span) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n")
}

// Split chunks a section's spans greedily: each chunk takes as much text as
// fits under MaxChars, cutting at the last sentence end inside the window,
// else the last whitespace. Every chunk records the first and last source
// page it draws from. The trailing chunk may be arbitrarily short.
func Split(spans []Span, cfg Config) []Chunk {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}

	text := SectionText(spans)
	if text == "" {
		return nil
	}

	ranges := make([]spanRange, 0, len(spans))
	off := 0
	for i, s := range spans {
		end := off + len(s.Text)
		if i < len(spans)-1 {
			end++ // the joining newline belongs to this span
		}
		ranges = append(ranges, spanRange{start: off, end: end, page: s.Page})
		off = end
	}

	var chunks []Chunk
	pos := 0
	for pos < len(text) {
		cut := cutPoint(text, pos, cfg.MaxChars)
		c := Chunk{
			Seq:         len(chunks),
			Text:        text[pos:cut],
			StartOffset: pos,
			EndOffset:   cut,
		}
		c.PageStart = pageAt(ranges, pos)
		c.PageEnd = pageAt(ranges, cut-1)
		chunks = append(chunks, c)
		pos = cut
	}
	return chunks
}

// cutPoint finds the end of the chunk starting at pos: the whole remainder if
// it fits, otherwise the boundary closest to the limit. Whitespace at a cut
// belongs to the left chunk, so no word is ever split across chunks.
func cutPoint(text string, pos, maxChars int) int {
	remaining := len(text) - pos
	if remaining <= maxChars {
		return len(text)
	}
	window := text[pos : pos+maxChars]

	// Prefer the last sentence end followed by whitespace.
	best := -1
	for i := len(window) - 1; i > 0; i-- {
		if isSpace(window[i]) && isSentenceEnd(window[i-1]) {
			best = i + 1
			break
		}
	}
	if best < 0 {
		// Fall back to the last whitespace in the window.
		for i := len(window) - 1; i >= 0; i-- {
			if isSpace(window[i]) {
				best = i + 1
				break
			}
		}
	}
	if best <= 0 {
		// Single word longer than the limit: hard cut at a rune boundary.
		best = maxChars
		for best > 1 && !utf8.RuneStart(text[pos+best]) {
			best--
		}
	}
	return pos + best
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// pageAt returns the source page owning the given byte offset.
func pageAt(ranges []spanRange, off int) int {
	if len(ranges) == 0 {
		return 0
	}
	lo, hi := 0, len(ranges)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if ranges[mid].end <= off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return ranges[lo].page
}
