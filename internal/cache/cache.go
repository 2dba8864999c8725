// Package cache is a content-addressed store for intermediate stage outputs.
// Entries are keyed by (document content hash, stage name, stage parameters);
// a key never expires and is only ever invalidated by the key itself changing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Key addresses one stage output for one document.
type Key struct {
	ContentHash string
	Stage       string
	// Params is the stage's parameter set; it is canonicalized via JSON,
	// so it must marshal deterministically (structs and maps both do).
	Params any
}

// Fingerprint returns the stable hash the entry is stored under.
func (k Key) Fingerprint() (string, error) {
	params, err := json.Marshal(k.Params)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache params: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(k.ContentHash))
	h.Write([]byte{0})
	h.Write([]byte(k.Stage))
	h.Write([]byte{0})
	h.Write(params)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store is a filesystem-backed cache, one file per key. Writes to the same
// key are serialized; reads of distinct keys proceed independently. A
// disabled store always misses, which must not change pipeline output.
type Store struct {
	dir     string
	enabled bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the cache directory if needed. With enabled=false the store is
// a pure pass-through: every Get misses and Put is a no-op.
func New(dir string, enabled bool) (*Store, error) {
	if enabled {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &Store{
		dir:     dir,
		enabled: enabled,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Get returns the cached bytes for key. A miss is not an error.
func (s *Store) Get(key Key) ([]byte, bool, error) {
	if !s.enabled {
		return nil, false, nil
	}
	fp, err := key.Fingerprint()
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(fp))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache read %s: %w", key.Stage, err)
	}
	return data, true, nil
}

// Put stores value under key. Writing the same key again is idempotent:
// last write wins, and content is deterministic per key in practice.
func (s *Store) Put(key Key, value []byte) error {
	if !s.enabled {
		return nil
	}
	fp, err := key.Fingerprint()
	if err != nil {
		return err
	}

	lock := s.keyLock(fp)
	lock.Lock()
	defer lock.Unlock()

	tmp := s.path(fp) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("cache write %s: %w", key.Stage, err)
	}
	if err := os.Rename(tmp, s.path(fp)); err != nil {
		return fmt.Errorf("cache commit %s: %w", key.Stage, err)
	}
	return nil
}

func (s *Store) path(fp string) string {
	return filepath.Join(s.dir, fp+".cache")
}

func (s *Store) keyLock(fp string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[fp]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fp] = l
	}
	return l
}
