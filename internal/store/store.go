// Package store persists finished documents into the relational schema
// consumed by the retrieval layer: Companies -> PDFFamilies -> Documents ->
// DocumentChunks / DocumentImages / DocumentSummaries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the manual index tables. Applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS companies (
	company_id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pdf_families (
	family_id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES companies(company_id),
	family_name TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(company_id, family_name)
);
CREATE TABLE IF NOT EXISTS documents (
	content_hash TEXT PRIMARY KEY,
	family_id INTEGER REFERENCES pdf_families(family_id),
	original_name TEXT NOT NULL,
	model TEXT,
	year TEXT,
	page_count INTEGER NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS document_chunks (
	chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	content_hash TEXT NOT NULL REFERENCES documents(content_hash) ON DELETE CASCADE,
	section_id INTEGER NOT NULL,
	section_title TEXT NOT NULL,
	seq INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	page_start INTEGER NOT NULL,
	page_end INTEGER NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	embedding_ref TEXT
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(content_hash, section_id, seq);
CREATE TABLE IF NOT EXISTS document_images (
	image_id INTEGER PRIMARY KEY AUTOINCREMENT,
	content_hash TEXT NOT NULL REFERENCES documents(content_hash) ON DELETE CASCADE,
	section_id INTEGER,
	page INTEGER NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	storage_path TEXT NOT NULL,
	caption TEXT,
	embedding_ref TEXT
);
CREATE INDEX IF NOT EXISTS idx_images_doc ON document_images(content_hash, page);
CREATE TABLE IF NOT EXISTS document_summaries (
	summary_id INTEGER PRIMARY KEY AUTOINCREMENT,
	content_hash TEXT NOT NULL REFERENCES documents(content_hash) ON DELETE CASCADE,
	section_id INTEGER,
	summary_text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// DocumentRecord identifies one indexed manual.
type DocumentRecord struct {
	ContentHash  string
	OriginalName string
	Family       string
	Model        string
	Year         string
	PageCount    int
}

// ChunkRecord is one persisted retrieval chunk.
type ChunkRecord struct {
	SectionID    int
	SectionTitle string
	Seq          int
	Text         string
	PageStart    int
	PageEnd      int
	StartOffset  int
	EndOffset    int
}

// ImageRecord is one persisted, quality-optimized diagram.
type ImageRecord struct {
	SectionID   *int
	Page        int
	Width       int
	Height      int
	StoragePath string
	Caption     string
}

// Batch is everything a finished document contributes in one transaction.
type Batch struct {
	Document DocumentRecord
	Chunks   []ChunkRecord
	Images   []ImageRecord
}

// Store wraps the SQLite database.
type Store struct {
	db      *sql.DB
	company string
}

// Open opens (creating if needed) the database and applies the schema.
func Open(path, companyName string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, company: companyName}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDocument persists a finished document atomically. Re-saving the same
// content hash replaces the previous rows, so persistence is idempotent.
func (s *Store) SaveDocument(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	companyID, err := ensureCompany(ctx, tx, s.company, now)
	if err != nil {
		return err
	}

	var familyID sql.NullInt64
	if b.Document.Family != "" {
		id, err := ensureFamily(ctx, tx, companyID, b.Document.Family, now)
		if err != nil {
			return err
		}
		familyID = sql.NullInt64{Int64: id, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (content_hash, family_id, original_name, model, year, page_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			family_id=excluded.family_id, original_name=excluded.original_name,
			model=excluded.model, year=excluded.year,
			page_count=excluded.page_count, indexed_at=excluded.indexed_at`,
		b.Document.ContentHash, familyID, b.Document.OriginalName,
		b.Document.Model, b.Document.Year, b.Document.PageCount, now); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	for _, table := range []string{"document_chunks", "document_images"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE content_hash = ?", b.Document.ContentHash); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks
			(content_hash, section_id, section_title, seq, chunk_text,
			 page_start, page_end, start_offset, end_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()
	for _, c := range b.Chunks {
		if _, err := chunkStmt.ExecContext(ctx, b.Document.ContentHash,
			c.SectionID, c.SectionTitle, c.Seq, c.Text,
			c.PageStart, c.PageEnd, c.StartOffset, c.EndOffset); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Seq, err)
		}
	}

	imgStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_images
			(content_hash, section_id, page, width, height, storage_path, caption)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare image insert: %w", err)
	}
	defer imgStmt.Close()
	for i, img := range b.Images {
		var secID sql.NullInt64
		if img.SectionID != nil {
			secID = sql.NullInt64{Int64: int64(*img.SectionID), Valid: true}
		}
		var caption sql.NullString
		if img.Caption != "" {
			caption = sql.NullString{String: img.Caption, Valid: true}
		}
		if _, err := imgStmt.ExecContext(ctx, b.Document.ContentHash,
			secID, img.Page, img.Width, img.Height, img.StoragePath, caption); err != nil {
			return fmt.Errorf("insert image %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func ensureCompany(ctx context.Context, tx *sql.Tx, name string, now int64) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO companies (company_name, created_at) VALUES (?, ?)
		 ON CONFLICT(company_name) DO NOTHING`, name, now); err != nil {
		return 0, fmt.Errorf("ensure company: %w", err)
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT company_id FROM companies WHERE company_name = ?`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup company: %w", err)
	}
	return id, nil
}

func ensureFamily(ctx context.Context, tx *sql.Tx, companyID int64, name string, now int64) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pdf_families (company_id, family_name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(company_id, family_name) DO NOTHING`, companyID, name, now); err != nil {
		return 0, fmt.Errorf("ensure family: %w", err)
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT family_id FROM pdf_families WHERE company_id = ? AND family_name = ?`,
		companyID, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup family: %w", err)
	}
	return id, nil
}

// DocumentInfo is a listing row with per-document counts.
type DocumentInfo struct {
	ContentHash  string `json:"content_hash"`
	OriginalName string `json:"original_name"`
	Family       string `json:"family,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         string `json:"year,omitempty"`
	PageCount    int    `json:"page_count"`
	ChunkCount   int    `json:"chunk_count"`
	ImageCount   int    `json:"image_count"`
}

// ListDocuments returns all indexed documents with chunk/image counts.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.content_hash, d.original_name,
		       COALESCE(f.family_name, ''), COALESCE(d.model, ''), COALESCE(d.year, ''),
		       d.page_count,
		       (SELECT COUNT(*) FROM document_chunks c WHERE c.content_hash = d.content_hash),
		       (SELECT COUNT(*) FROM document_images i WHERE i.content_hash = d.content_hash)
		FROM documents d
		LEFT JOIN pdf_families f ON f.family_id = d.family_id
		ORDER BY d.original_name`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.ContentHash, &d.OriginalName, &d.Family, &d.Model,
			&d.Year, &d.PageCount, &d.ChunkCount, &d.ImageCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// HasDocument reports whether a document with this content hash is indexed.
func (s *Store) HasDocument(ctx context.Context, contentHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE content_hash = ?`, contentHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup document: %w", err)
	}
	return true, nil
}

// DeleteDocument removes a document and, via cascade, its chunks and images.
func (s *Store) DeleteDocument(ctx context.Context, contentHash string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE content_hash = ?`, contentHash); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
