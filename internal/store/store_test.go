package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "Ducati")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBatch() Batch {
	sec := 2
	return Batch{
		Document: DocumentRecord{
			ContentHash:  "abc123",
			OriginalName: "MonsterOM.pdf",
			Family:       "Monster",
			Model:        "Monster",
			Year:         "2021",
			PageCount:    120,
		},
		Chunks: []ChunkRecord{
			{SectionID: 1, SectionTitle: "Engine", Seq: 0, Text: "Engine overview.", PageStart: 1, PageEnd: 4, StartOffset: 0, EndOffset: 16},
			{SectionID: 1, SectionTitle: "Engine", Seq: 1, Text: "Torque specs.", PageStart: 4, PageEnd: 6, StartOffset: 16, EndOffset: 29},
		},
		Images: []ImageRecord{
			{SectionID: &sec, Page: 7, Width: 640, Height: 480, StoragePath: "images/abc123/p7-0.jpg"},
		},
	}
}

func TestSaveAndListDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveDocument(ctx, sampleBatch()); err != nil {
		t.Fatalf("save document: %v", err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	d := docs[0]
	if d.ContentHash != "abc123" || d.Family != "Monster" || d.Year != "2021" {
		t.Errorf("unexpected document row: %+v", d)
	}
	if d.ChunkCount != 2 || d.ImageCount != 1 {
		t.Errorf("expected 2 chunks and 1 image, got %d/%d", d.ChunkCount, d.ImageCount)
	}
}

func TestSaveDocumentIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := sampleBatch()
	if err := s.SaveDocument(ctx, b); err != nil {
		t.Fatalf("first save: %v", err)
	}
	// Second save with fewer chunks must replace, not append.
	b.Chunks = b.Chunks[:1]
	if err := s.SaveDocument(ctx, b); err != nil {
		t.Fatalf("second save: %v", err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document after re-save, got %d", len(docs))
	}
	if docs[0].ChunkCount != 1 {
		t.Errorf("expected 1 chunk after re-save, got %d", docs[0].ChunkCount)
	}
}

func TestHasDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.HasDocument(ctx, "missing")
	if err != nil {
		t.Fatalf("has document: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown hash")
	}

	if err := s.SaveDocument(ctx, sampleBatch()); err != nil {
		t.Fatalf("save document: %v", err)
	}
	ok, err = s.HasDocument(ctx, "abc123")
	if err != nil {
		t.Fatalf("has document: %v", err)
	}
	if !ok {
		t.Error("expected hit after save")
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveDocument(ctx, sampleBatch()); err != nil {
		t.Fatalf("save document: %v", err)
	}
	if err := s.DeleteDocument(ctx, "abc123"); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents after delete, got %d", len(docs))
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM document_chunks`).Scan(&n); err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if n != 0 {
		t.Errorf("expected chunk rows cascaded away, got %d", n)
	}
}

func TestFamilyRowsAreShared(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b1 := sampleBatch()
	b2 := sampleBatch()
	b2.Document.ContentHash = "def456"
	b2.Document.OriginalName = "Monster2.pdf"
	if err := s.SaveDocument(ctx, b1); err != nil {
		t.Fatalf("save b1: %v", err)
	}
	if err := s.SaveDocument(ctx, b2); err != nil {
		t.Fatalf("save b2: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pdf_families`).Scan(&n); err != nil {
		t.Fatalf("count families: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one shared family row, got %d", n)
	}
}
