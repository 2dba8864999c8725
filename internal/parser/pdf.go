package parser

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/manualindex/internal/content"
	"github.com/dgallion1/manualindex/internal/sectiontree"
)

// PDFDecoder decodes PDF manuals. Text comes from ledongthuc/pdf, the
// outline (TOC) and embedded images from pdfcpu.
type PDFDecoder struct {
	log *slog.Logger
}

func NewPDFDecoder(log *slog.Logger) *PDFDecoder {
	if log == nil {
		log = slog.Default()
	}
	return &PDFDecoder{log: log}
}

// Open reads and validates the file. An unreadable file fails with an error
// wrapping ErrCorrupt; a missing outline is not an error.
func (d *PDFDecoder) Open(path string) (Source, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	src := &pdfSource{
		log:    d.log,
		file:   f,
		reader: reader,
		pages:  reader.NumPage(),
	}

	// The outline is best effort: manuals without one fall back to a
	// single-section tree downstream.
	cf, err := os.Open(path)
	if err == nil {
		defer cf.Close()
		conf := model.NewDefaultConfiguration()
		if ctx, cerr := api.ReadValidateAndOptimize(cf, conf); cerr == nil {
			src.ctx = ctx
			src.toc = outlineEntries(ctx, src.pages, d.log)
		} else {
			d.log.Warn("pdfcpu read failed, continuing without outline",
				"path", path, "error", cerr)
		}
	}

	return src, nil
}

type pdfSource struct {
	log    *slog.Logger
	file   *os.File
	reader *pdflib.Reader
	ctx    *model.Context
	toc    []sectiontree.Entry
	pages  int
}

func (s *pdfSource) TOC() []sectiontree.Entry { return s.toc }
func (s *pdfSource) PageCount() int           { return s.pages }
func (s *pdfSource) Close() error             { return s.file.Close() }

// Items returns a fresh lazy stream over all pages.
func (s *pdfSource) Items() content.Stream {
	return &pageStream{src: s, page: 0}
}

// pageStream decodes one page at a time, emitting the page's text span first
// and its image regions after.
type pageStream struct {
	src     *pdfSource
	page    int
	pending []content.Item
}

func (ps *pageStream) Next() (content.Item, error) {
	for {
		if len(ps.pending) > 0 {
			it := ps.pending[0]
			ps.pending = ps.pending[1:]
			return it, nil
		}
		ps.page++
		if ps.page > ps.src.pages {
			return content.Item{}, io.EOF
		}
		ps.pending = ps.src.decodePage(ps.page)
	}
}

func (s *pdfSource) decodePage(pageNr int) []content.Item {
	var items []content.Item

	page := s.reader.Page(pageNr)
	if !page.V.IsNull() {
		text, err := page.GetPlainText(nil)
		if err != nil {
			s.log.Warn("page text extraction failed", "page", pageNr, "error", err)
		} else if text != "" {
			items = append(items, content.Item{
				Kind: content.KindText,
				Page: pageNr,
				Text: text,
			})
		}
	}

	if s.ctx != nil {
		imgs, err := pdfcpu.ExtractPageImages(s.ctx, pageNr, false)
		if err != nil {
			s.log.Warn("page image extraction failed", "page", pageNr, "error", err)
		} else {
			// pdfcpu does not report placement, so regions keep a zero
			// bounding box and the object-number order.
			for _, objNr := range sortedKeys(imgs) {
				img := imgs[objNr]
				data, err := io.ReadAll(img)
				if err != nil || len(data) == 0 {
					continue
				}
				items = append(items, content.Item{
					Kind: content.KindImage,
					Page: pageNr,
					Data: data,
				})
			}
		}
	}

	return items
}

func sortedKeys(m map[int]model.Image) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// outlineEntries flattens the PDF outline into TOC entries in document order.
func outlineEntries(ctx *model.Context, pageCount int, log *slog.Logger) []sectiontree.Entry {
	bms, err := pdfcpu.Bookmarks(ctx)
	if err != nil {
		log.Warn("no usable outline", "error", err)
		return nil
	}
	var entries []sectiontree.Entry
	var walk func(bs []pdfcpu.Bookmark, depth int)
	walk = func(bs []pdfcpu.Bookmark, depth int) {
		for _, b := range bs {
			entries = append(entries, sectiontree.Entry{
				Title: b.Title,
				Depth: depth,
				Page:  b.PageFrom,
			})
			if len(b.Kids) > 0 {
				walk(b.Kids, depth+1)
			}
		}
	}
	walk(bms, 1)
	if len(entries) > 0 {
		log.Info("extracted outline", "entries", len(entries), "pages", pageCount)
	}
	return entries
}
