package content

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/manualindex/internal/sectiontree"
)

func testTree(t *testing.T) *sectiontree.Tree {
	t.Helper()
	entries := []sectiontree.Entry{
		{Title: "Engine", Depth: 1, Page: 1},
		{Title: "Cooling", Depth: 2, Page: 5},
		{Title: "Frame", Depth: 1, Page: 12},
	}
	return sectiontree.Build(entries, 20, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func titleOf(tree *sectiontree.Tree, id int) string {
	return tree.ByID(id).Title
}

func TestMapAssignsDeepestSection(t *testing.T) {
	tree := testTree(t)
	items := []Item{
		{Kind: KindText, Page: 2, Text: "engine intro"},
		{Kind: KindText, Page: 7, Text: "coolant spec"},
		{Kind: KindText, Page: 14, Text: "frame torque"},
	}
	mapped, err := Map(tree, NewSliceStream(items))
	if err != nil {
		t.Fatalf("map: %v", err)
	}

	for id, got := range mapped {
		if len(got) != 1 {
			t.Fatalf("section %d: expected 1 item, got %d", id, len(got))
		}
	}
	want := map[string]string{
		"engine intro":  "Engine",
		"coolant spec":  "Cooling",
		"frame torque":  "Frame",
	}
	for id, its := range mapped {
		if want[its[0].Text] != titleOf(tree, id) {
			t.Errorf("item %q: expected section %q, got %q",
				its[0].Text, want[its[0].Text], titleOf(tree, id))
		}
	}
}

func TestMapOrdersImagesAfterTextByPosition(t *testing.T) {
	tree := testTree(t)
	items := []Item{
		{Kind: KindImage, Page: 7, Data: []byte("low"), BBox: Rect{X0: 10, Y0: 500}},
		{Kind: KindText, Page: 7, Text: "first span"},
		{Kind: KindImage, Page: 7, Data: []byte("top-right"), BBox: Rect{X0: 300, Y0: 100}},
		{Kind: KindImage, Page: 7, Data: []byte("top-left"), BBox: Rect{X0: 20, Y0: 100}},
		{Kind: KindText, Page: 7, Text: "second span"},
	}
	mapped, err := Map(tree, NewSliceStream(items))
	if err != nil {
		t.Fatalf("map: %v", err)
	}

	cooling := tree.Locate(7)
	got := mapped[cooling.ID]
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	wantOrder := []string{"first span", "second span", "top-left", "top-right", "low"}
	for i, w := range wantOrder {
		label := got[i].Text
		if got[i].Kind == KindImage {
			label = string(got[i].Data)
		}
		if label != w {
			t.Errorf("position %d: expected %q, got %q", i, w, label)
		}
	}
}

func TestMapOutOfRangePageAttachesToRoot(t *testing.T) {
	tree := testTree(t)
	items := []Item{
		{Kind: KindText, Page: 25, Text: "trailing colophon"},
	}
	mapped, err := Map(tree, NewSliceStream(items))
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(mapped[tree.Root.ID]) != 1 {
		t.Fatalf("expected item on root, got %v", mapped)
	}
}

func TestFilters(t *testing.T) {
	items := []Item{
		{Kind: KindText, Text: "a"},
		{Kind: KindImage, Data: []byte{1}},
		{Kind: KindText, Text: "b"},
	}
	if got := len(TextSpans(items)); got != 2 {
		t.Fatalf("expected 2 text spans, got %d", got)
	}
	if got := len(Images(items)); got != 1 {
		t.Fatalf("expected 1 image, got %d", got)
	}
}
