package cache

import (
	"bytes"
	"sync"
	"testing"
)

type chunkParams struct {
	MaxChars int `json:"max_chars"`
}

func TestGetMissIsNotAnError(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, ok, err := s.Get(Key{ContentHash: "abc", Stage: "decode"})
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestPutThenGet(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := Key{ContentHash: "abc", Stage: "chunks", Params: chunkParams{MaxChars: 500}}
	want := []byte(`{"chunks":[]}`)
	if err := s.Put(key, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestKeyComponentsAllMatter(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	base := Key{ContentHash: "abc", Stage: "chunks", Params: chunkParams{MaxChars: 500}}
	if err := s.Put(base, []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}

	variants := []Key{
		{ContentHash: "abd", Stage: "chunks", Params: chunkParams{MaxChars: 500}},
		{ContentHash: "abc", Stage: "decode", Params: chunkParams{MaxChars: 500}},
		{ContentHash: "abc", Stage: "chunks", Params: chunkParams{MaxChars: 800}},
	}
	for i, k := range variants {
		if _, ok, _ := s.Get(k); ok {
			t.Errorf("variant %d: expected miss for changed key component", i)
		}
	}
}

func TestPutIdempotent(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := Key{ContentHash: "abc", Stage: "decode"}
	for i := 0; i < 3; i++ {
		if err := s.Put(key, []byte("same")); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	got, ok, _ := s.Get(key)
	if !ok || string(got) != "same" {
		t.Fatalf("expected %q, got %q (hit=%v)", "same", got, ok)
	}
}

func TestDisabledStoreAlwaysMisses(t *testing.T) {
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := Key{ContentHash: "abc", Stage: "decode"}
	if err := s.Put(key, []byte("v")); err != nil {
		t.Fatalf("put on disabled store: %v", err)
	}
	if _, ok, _ := s.Get(key); ok {
		t.Fatal("disabled store must always miss")
	}
}

func TestConcurrentWritesToSameKey(t *testing.T) {
	s, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key := Key{ContentHash: "abc", Stage: "decode"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Put(key, []byte("deterministic")); err != nil {
				t.Errorf("put: %v", err)
			}
		}()
	}
	wg.Wait()

	got, ok, err := s.Get(key)
	if err != nil || !ok {
		t.Fatalf("get after concurrent puts: hit=%v err=%v", ok, err)
	}
	if string(got) != "deterministic" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	k := Key{ContentHash: "abc", Stage: "chunks", Params: chunkParams{MaxChars: 500}}
	a, err := k.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	b, _ := k.Fingerprint()
	if a != b {
		t.Fatalf("fingerprint not stable: %s vs %s", a, b)
	}
}
