// Package sectiontree builds a document's hierarchical section tree from its
// table of contents and resolves page ownership.
package sectiontree

import (
	"log/slog"
	"sort"
)

// Entry is a single table-of-contents row in document order.
type Entry struct {
	Title string `json:"title"`
	Depth int    `json:"depth"`
	Page  int    `json:"page"`
}

// Section is a node in the document tree. It owns the inclusive page range
// [StartPage, EndPage]. Sibling ranges never overlap and a child's range is
// contained in its parent's.
type Section struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Depth     int        `json:"depth"`
	StartPage int        `json:"start_page"`
	EndPage   int        `json:"end_page"`
	Children  []*Section `json:"children,omitempty"`
}

// Tree is the built section hierarchy. Root always spans the whole document.
type Tree struct {
	Root      *Section
	PageCount int

	flat []*Section
}

// Build constructs a section tree from TOC entries. Entries are consumed in
// document order; nesting is derived from depth using a stack of open
// sections. An empty TOC yields a single root section covering all pages.
// Out-of-range start pages are clamped and logged, never fatal.
func Build(entries []Entry, pageCount int, log *slog.Logger) *Tree {
	if log == nil {
		log = slog.Default()
	}
	if pageCount < 1 {
		pageCount = 1
	}

	root := &Section{Title: "Document", Depth: 0, StartPage: 1, EndPage: pageCount}
	t := &Tree{Root: root, PageCount: pageCount}

	type openSection struct {
		node  *Section
		depth int
	}

	clamped := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Depth < 1 {
			e.Depth = 1
		}
		if e.Page < 1 || e.Page > pageCount {
			log.Warn("toc entry page out of range, clamping",
				"title", e.Title, "page", e.Page, "pages", pageCount)
			e.Page = min(max(e.Page, 1), pageCount)
		}
		clamped = append(clamped, e)
	}

	stack := []openSection{{node: root, depth: 0}}
	nodes := make([]*Section, 0, len(clamped))

	for _, e := range clamped {
		for len(stack) > 1 && stack[len(stack)-1].depth >= e.Depth {
			stack = stack[:len(stack)-1]
		}
		node := &Section{
			Title:     e.Title,
			Depth:     e.Depth,
			StartPage: e.Page,
			EndPage:   pageCount,
		}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, node)
		stack = append(stack, openSection{node: node, depth: e.Depth})
		nodes = append(nodes, node)
	}

	// A section ends one page before the next sibling-or-ancestor starts.
	// Consecutive entries sharing a start page collapse the earlier one to a
	// single-page range.
	for i, node := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			if nodes[j].Depth <= node.Depth {
				node.EndPage = nodes[j].StartPage - 1
				break
			}
		}
		if node.EndPage < node.StartPage {
			node.EndPage = node.StartPage
		}
	}

	t.flat = flatten(root)
	for i, s := range t.flat {
		s.ID = i
	}
	return t
}

func flatten(root *Section) []*Section {
	var out []*Section
	var walk func(*Section)
	walk = func(s *Section) {
		out = append(out, s)
		for _, c := range s.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// Flatten returns all sections in pre-order (root first). The returned slice
// is shared; callers must not mutate it.
func (t *Tree) Flatten() []*Section {
	return t.flat
}

// Leaves returns sections without children in tree order.
func (t *Tree) Leaves() []*Section {
	var leaves []*Section
	for _, s := range t.flat {
		if len(s.Children) == 0 {
			leaves = append(leaves, s)
		}
	}
	return leaves
}

// Locate returns the deepest section whose range contains page. When
// sections of equal depth contain the page (collapsed single-page siblings
// share their start page with the next range), the first in tree order wins.
// Pages outside every declared range resolve to the root.
func (t *Tree) Locate(page int) *Section {
	return locate(t.Root, page)
}

// locate resolves page within cur's subtree. Children are sorted by start
// page, so a binary search finds the last candidate; collapsed siblings
// before it may also contain the page, and any of them can hold the deeper
// match, so every containing child's subtree is probed before committing.
func locate(cur *Section, page int) *Section {
	children := cur.Children
	// Last child starting at or before page.
	idx := sort.Search(len(children), func(i int) bool {
		return children[i].StartPage > page
	}) - 1

	best := cur
	for ; idx >= 0 && contains(children[idx], page); idx-- {
		if got := locate(children[idx], page); got.Depth >= best.Depth {
			best = got
		}
	}
	return best
}

func contains(s *Section, page int) bool {
	return page >= s.StartPage && page <= s.EndPage
}

// ByID returns the section with the given pre-order ID, or nil.
func (t *Tree) ByID(id int) *Section {
	if id < 0 || id >= len(t.flat) {
		return nil
	}
	return t.flat[id]
}
