// Package imaging turns raw embedded image regions into quality-optimized
// diagram files. Regions that are too small or oddly shaped to be diagrams
// are filtered out; results over the configured byte limit are rejected.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// ErrTooLarge signals that the optimized image would exceed MaxBytes.
var ErrTooLarge = errors.New("encoded image exceeds size limit")

// ErrFiltered signals a region rejected by the diagram filters (too small or
// implausible aspect ratio). Not a failure; the region is simply skipped.
var ErrFiltered = errors.New("image region filtered out")

// Config controls diagram filtering and re-encoding.
type Config struct {
	Quality   int     `json:"quality"`    // JPEG quality 1-100
	MaxBytes  int     `json:"max_bytes"`  // reject encodings larger than this
	MaxDim    int     `json:"max_dim"`    // downscale so max(w,h) <= MaxDim
	MinArea   int     `json:"min_area"`   // filter regions below this pixel area
	MinAspect float64 `json:"min_aspect"` // filter w/h outside [MinAspect, MaxAspect]
	MaxAspect float64 `json:"max_aspect"`
}

// DefaultConfig mirrors the diagram-detection thresholds used for manuals.
func DefaultConfig() Config {
	return Config{
		Quality:   85,
		MaxBytes:  10 * 1024 * 1024,
		MaxDim:    2048,
		MinArea:   30000,
		MinAspect: 0.5,
		MaxAspect: 2.0,
	}
}

// Encoded is one optimized diagram ready for storage.
type Encoded struct {
	Data   []byte
	Width  int
	Height int
}

// Codec re-encodes raw image bytes deterministically for a given config.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) *Codec {
	def := DefaultConfig()
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.MaxDim <= 0 {
		cfg.MaxDim = def.MaxDim
	}
	if cfg.MaxAspect <= 0 {
		cfg.MinAspect = def.MinAspect
		cfg.MaxAspect = def.MaxAspect
	}
	return &Codec{cfg: cfg}
}

// Encode decodes raw bytes, applies the diagram filters, downscales if
// needed and re-encodes as JPEG at the configured quality.
func (c *Codec) Encode(raw []byte) (Encoded, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Encoded{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if h == 0 || w*h < c.cfg.MinArea {
		return Encoded{}, ErrFiltered
	}
	aspect := float64(w) / float64(h)
	if aspect < c.cfg.MinAspect || aspect > c.cfg.MaxAspect {
		return Encoded{}, ErrFiltered
	}

	if w > c.cfg.MaxDim || h > c.cfg.MaxDim {
		img = downscale(img, c.cfg.MaxDim)
		b = img.Bounds()
		w, h = b.Dx(), b.Dy()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.cfg.Quality}); err != nil {
		return Encoded{}, fmt.Errorf("encode jpeg: %w", err)
	}
	if buf.Len() > c.cfg.MaxBytes {
		return Encoded{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, buf.Len(), c.cfg.MaxBytes)
	}

	return Encoded{Data: buf.Bytes(), Width: w, Height: h}, nil
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := float64(maxDim) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
