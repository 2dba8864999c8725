package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/manualindex/internal/cache"
	"github.com/dgallion1/manualindex/internal/chunker"
	"github.com/dgallion1/manualindex/internal/cleaner"
	"github.com/dgallion1/manualindex/internal/config"
	"github.com/dgallion1/manualindex/internal/content"
	"github.com/dgallion1/manualindex/internal/imaging"
	"github.com/dgallion1/manualindex/internal/parser"
	"github.com/dgallion1/manualindex/internal/sectiontree"
	"github.com/dgallion1/manualindex/internal/store"
)

// Persister saves a finished document batch. Satisfied by *store.Store.
type Persister interface {
	SaveDocument(ctx context.Context, b store.Batch) error
}

// Worker runs the indexing pipeline for a single document: decode, build
// the section tree, map content, clean, chunk, optimize images, persist.
type Worker struct {
	dec     parser.Decoder
	cache   *cache.Store
	clean   cleaner.Cleaner
	codec   *imaging.Codec
	persist Persister
	log     *slog.Logger
	cfg     config.Config
}

func NewWorker(dec parser.Decoder, c *cache.Store, cl cleaner.Cleaner, codec *imaging.Codec, p Persister, log *slog.Logger, cfg config.Config) *Worker {
	return &Worker{
		dec:     dec,
		cache:   c,
		clean:   cl,
		codec:   codec,
		persist: p,
		log:     log,
		cfg:     cfg,
	}
}

// Output summarizes one successful document pass.
type Output struct {
	ContentHash string
	Pages       int
	Sections    int
	Chunks      int
	Images      int
	CacheHit    bool
}

// indexParams pins every knob that changes indexing output. Two runs with
// the same document bytes and the same params produce the same batch, which
// is what makes the cache entry safe to reuse.
type indexParams struct {
	ChunkMaxChars int    `json:"chunk_max_chars"`
	ImageQuality  int    `json:"image_quality"`
	ImageMaxDim   int    `json:"image_max_dim"`
	ImageMinArea  int    `json:"image_min_area"`
	MaxImageBytes int    `json:"max_image_bytes"`
	CompanyName   string `json:"company_name"`
}

func (w *Worker) params() indexParams {
	return indexParams{
		ChunkMaxChars: w.cfg.ChunkMaxChars,
		ImageQuality:  w.cfg.ImageQuality,
		ImageMaxDim:   w.cfg.ImageMaxDim,
		ImageMinArea:  w.cfg.ImageMinArea,
		MaxImageBytes: w.cfg.MaxImageBytes,
		CompanyName:   w.cfg.CompanyName,
	}
}

// Process runs one indexing attempt for a job. Transient failures come back
// wrapped in TransientError; everything else, including the per-document
// timeout, is permanent.
func (w *Worker) Process(ctx context.Context, job *Job) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.DocTimeout)
	defer cancel()

	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	data, err := os.ReadFile(job.Path)
	if err != nil {
		return Output{}, Transient("read document", err)
	}
	hash := ContentHashHex(data)
	job.SetContentHash(hash)
	log = log.With("content_hash", hash[:12])

	key := cache.Key{ContentHash: hash, Stage: "index", Params: w.params()}
	if raw, ok, err := w.cache.Get(key); err != nil {
		log.Warn("cache read failed, reindexing", "error", err)
	} else if ok {
		var art indexArtifact
		if uerr := json.Unmarshal(raw, &art); uerr != nil || art.Batch.Document.ContentHash != hash {
			log.Warn("cache entry unusable, reindexing", "error", uerr)
		} else {
			if err := w.persist.SaveDocument(ctx, art.Batch); err != nil {
				return Output{}, Transient("persist document", err)
			}
			log.Info("indexed from cache",
				"sections", art.Sections, "chunks", len(art.Batch.Chunks), "images", len(art.Batch.Images))
			return Output{
				ContentHash: hash,
				Pages:       art.Batch.Document.PageCount,
				Sections:    art.Sections,
				Chunks:      len(art.Batch.Chunks),
				Images:      len(art.Batch.Images),
				CacheHit:    true,
			}, nil
		}
	}

	batch, sections, err := w.index(ctx, job, hash)
	if err != nil {
		return Output{}, err
	}

	if err := w.persist.SaveDocument(ctx, batch); err != nil {
		return Output{}, Transient("persist document", err)
	}

	if raw, err := json.Marshal(indexArtifact{Batch: batch, Sections: sections}); err != nil {
		log.Warn("cache encode failed", "error", err)
	} else if err := w.cache.Put(key, raw); err != nil {
		log.Warn("cache write failed", "error", err)
	}

	log.Info("indexed document",
		"sections", sections, "chunks", len(batch.Chunks), "images", len(batch.Images))
	return Output{
		ContentHash: hash,
		Pages:       batch.Document.PageCount,
		Sections:    sections,
		Chunks:      len(batch.Chunks),
		Images:      len(batch.Images),
	}, nil
}

// indexArtifact is what the index stage caches: the persisted batch plus
// report numbers not derivable from it.
type indexArtifact struct {
	Batch    store.Batch `json:"batch"`
	Sections int         `json:"sections"`
}

// decodedDoc is the cacheable result of the decode stage: everything the
// engines produced, before any structural interpretation.
type decodedDoc struct {
	TOC       []sectiontree.Entry `json:"toc"`
	PageCount int                 `json:"page_count"`
	Items     []content.Item      `json:"items"`
}

// decode opens the document, or serves the decode stage from cache.
func (w *Worker) decode(ctx context.Context, job *Job, hash string) (decodedDoc, error) {
	key := cache.Key{ContentHash: hash, Stage: "decode"}
	if raw, ok, err := w.cache.Get(key); err != nil {
		w.log.Warn("decode cache read failed", "error", err)
	} else if ok {
		var dd decodedDoc
		uerr := json.Unmarshal(raw, &dd)
		if uerr == nil {
			return dd, nil
		}
		w.log.Warn("decode cache entry unreadable, decoding", "error", uerr)
	}

	src, err := w.dec.Open(job.Path)
	if err != nil {
		if errors.Is(err, parser.ErrCorrupt) {
			return decodedDoc{}, err
		}
		return decodedDoc{}, Transient("open document", err)
	}
	defer src.Close()

	dd := decodedDoc{TOC: src.TOC(), PageCount: src.PageCount()}
	stream := src.Items()
	for {
		if err := ctx.Err(); err != nil {
			return decodedDoc{}, err
		}
		it, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return decodedDoc{}, Transient("read content", err)
		}
		dd.Items = append(dd.Items, it)
	}

	if raw, err := json.Marshal(dd); err != nil {
		w.log.Warn("decode cache encode failed", "error", err)
	} else if err := w.cache.Put(key, raw); err != nil {
		w.log.Warn("decode cache write failed", "error", err)
	}
	return dd, nil
}

// index performs the full decode-to-batch pass.
func (w *Worker) index(ctx context.Context, job *Job, hash string) (store.Batch, int, error) {
	dd, err := w.decode(ctx, job, hash)
	if err != nil {
		return store.Batch{}, 0, err
	}

	meta := parser.ExtractMetadata(job.Filename, w.cfg.Families, w.cfg.NameCleanupPatterns)
	tree := sectiontree.Build(dd.TOC, dd.PageCount, w.log)

	mapped, err := content.Map(tree, content.NewSliceStream(dd.Items))
	if err != nil {
		return store.Batch{}, 0, Transient("map content", err)
	}

	batch := store.Batch{
		Document: store.DocumentRecord{
			ContentHash:  hash,
			OriginalName: meta.OriginalName,
			Family:       meta.Family,
			Model:        meta.Model,
			Year:         meta.Year,
			PageCount:    dd.PageCount,
		},
	}

	for _, sec := range tree.Flatten() {
		if err := ctx.Err(); err != nil {
			return store.Batch{}, 0, err
		}
		items := mapped[sec.ID]
		if len(items) == 0 {
			continue
		}

		var spans []chunker.Span
		for _, it := range content.TextSpans(items) {
			text := w.clean.Clean(it.Text)
			if text == "" {
				continue
			}
			spans = append(spans, chunker.Span{Page: it.Page, Text: text})
		}
		for _, c := range chunker.Split(spans, chunker.Config{MaxChars: w.cfg.ChunkMaxChars}) {
			batch.Chunks = append(batch.Chunks, store.ChunkRecord{
				SectionID:    sec.ID,
				SectionTitle: sec.Title,
				Seq:          c.Seq,
				Text:         c.Text,
				PageStart:    c.PageStart,
				PageEnd:      c.PageEnd,
				StartOffset:  c.StartOffset,
				EndOffset:    c.EndOffset,
			})
		}

		imgs, err := w.saveImages(sec, meta, hash, content.Images(items))
		if err != nil {
			return store.Batch{}, 0, err
		}
		batch.Images = append(batch.Images, imgs...)
	}

	return batch, len(tree.Flatten()), nil
}

// saveImages optimizes a section's raw image regions and writes the keepers
// to the images directory under deterministic model_year_pgN_M names.
// Filtered and oversized regions are skipped, not treated as document
// failures.
func (w *Worker) saveImages(sec *sectiontree.Section, meta parser.Metadata, hash string, items []content.Item) ([]store.ImageRecord, error) {
	if len(items) == 0 {
		return nil, nil
	}
	dir := filepath.Join(w.cfg.ImagesDir, hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Transient("create images dir", err)
	}

	var out []store.ImageRecord
	perPage := map[int]int{}
	for _, it := range items {
		enc, err := w.codec.Encode(it.Data)
		if errors.Is(err, imaging.ErrFiltered) {
			continue
		}
		if err != nil {
			w.log.Warn("image skipped", "page", it.Page, "error", err)
			continue
		}
		n := perPage[it.Page]
		perPage[it.Page]++
		path := filepath.Join(dir, imageName(meta, it.Page, n))
		if err := os.WriteFile(path, enc.Data, 0o644); err != nil {
			return nil, Transient("write image", err)
		}
		secID := sec.ID
		out = append(out, store.ImageRecord{
			SectionID:   &secID,
			Page:        it.Page,
			Width:       enc.Width,
			Height:      enc.Height,
			StoragePath: path,
		})
	}
	return out, nil
}

func imageName(meta parser.Metadata, page, n int) string {
	model := slug(meta.Model)
	if model == "" {
		model = "manual"
	}
	year := meta.Year
	if year == "" {
		year = "na"
	}
	return fmt.Sprintf("%s_%s_pg%d_%d.jpg", model, year, page, n)
}

// slug keeps letters, digits and dashes, lowercased.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
