// Package parser wraps the low-level PDF engines behind the decoding
// contract the pipeline consumes: TOC entries, a page count, and a lazy,
// restartable stream of per-page content items.
package parser

import (
	"errors"

	"github.com/dgallion1/manualindex/internal/content"
	"github.com/dgallion1/manualindex/internal/sectiontree"
)

// ErrCorrupt marks a file the engine cannot read at all. A PDF without a TOC
// is NOT corrupt; it decodes with an empty entry list and the tree builder
// falls back to a single root section.
var ErrCorrupt = errors.New("corrupt or unreadable pdf")

// Source is one opened document. Items returns a fresh stream on every call,
// so consumption is restartable.
type Source interface {
	TOC() []sectiontree.Entry
	PageCount() int
	Items() content.Stream
	Close() error
}

// Decoder opens documents for structural extraction.
type Decoder interface {
	Open(path string) (Source, error)
}
