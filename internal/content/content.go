// Package content defines the per-page content items produced by the PDF
// decoder and maps them onto the owning sections of a document tree.
package content

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dgallion1/manualindex/internal/sectiontree"
)

// Kind discriminates text spans from image regions.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Rect is a bounding box in page coordinates. Y grows downward.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Item is a single piece of page content: either a text span or an image
// region. Every item is owned by exactly one section after mapping.
type Item struct {
	Kind Kind   `json:"kind"`
	Page int    `json:"page"`
	Text string `json:"text,omitempty"`
	Data []byte `json:"data,omitempty"`
	BBox Rect   `json:"bbox"`
}

// Stream is a pull-based, finite producer of content items in page order.
// Next returns io.EOF after the last item. Decoders hand out a fresh Stream
// per call, so consumption is restartable.
type Stream interface {
	Next() (Item, error)
}

// SliceStream adapts a fixed slice to the Stream contract.
type SliceStream struct {
	items []Item
	pos   int
}

func NewSliceStream(items []Item) *SliceStream {
	return &SliceStream{items: items}
}

func (s *SliceStream) Next() (Item, error) {
	if s.pos >= len(s.items) {
		return Item{}, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}

// Map consumes the stream and assigns every item to the deepest section whose
// page range contains the item's page (first in tree order on ties). Items on
// pages outside any declared range attach to the root. Within a page, text
// spans keep decoder order and image regions follow, ordered top-to-bottom
// then left-to-right.
//
// The result is keyed by section ID; each section's item list is ordered.
func Map(tree *sectiontree.Tree, stream Stream) (map[int][]Item, error) {
	out := make(map[int][]Item)

	var pageText, pageImages []Item
	curPage := -1

	flush := func() {
		if curPage < 0 {
			return
		}
		sort.SliceStable(pageImages, func(i, j int) bool {
			if pageImages[i].BBox.Y0 != pageImages[j].BBox.Y0 {
				return pageImages[i].BBox.Y0 < pageImages[j].BBox.Y0
			}
			return pageImages[i].BBox.X0 < pageImages[j].BBox.X0
		})
		sec := tree.Locate(curPage)
		out[sec.ID] = append(out[sec.ID], pageText...)
		out[sec.ID] = append(out[sec.ID], pageImages...)
		pageText = pageText[:0]
		pageImages = pageImages[:0]
	}

	for {
		it, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read content stream: %w", err)
		}
		if it.Page != curPage {
			flush()
			curPage = it.Page
		}
		switch it.Kind {
		case KindImage:
			pageImages = append(pageImages, it)
		default:
			pageText = append(pageText, it)
		}
	}
	flush()

	return out, nil
}

// TextSpans filters a section's mapped items down to its text spans, in order.
func TextSpans(items []Item) []Item {
	var spans []Item
	for _, it := range items {
		if it.Kind == KindText {
			spans = append(spans, it)
		}
	}
	return spans
}

// Images filters a section's mapped items down to its image regions, in order.
func Images(items []Item) []Item {
	var imgs []Item
	for _, it := range items {
		if it.Kind == KindImage {
			imgs = append(imgs, it)
		}
	}
	return imgs
}
