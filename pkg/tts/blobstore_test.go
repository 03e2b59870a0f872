package tts

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileBlobStorePutThenGet(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := "en-US/en-US-JennyNeural/abc123.wav"
	if err := store.Put(context.Background(), key, []byte("wav-bytes")); err != nil {
		t.Fatalf("unexpected error on put: %v", err)
	}

	data, ok, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error on get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after put")
	}
	if string(data) != "wav-bytes" {
		t.Errorf("unexpected data: %q", data)
	}
}

func TestFileBlobStoreMissReturnsNoError(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, ok, err := store.Get(context.Background(), "never/written/key.wav")
	if err != nil {
		t.Fatalf("expected a miss, not an error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false on miss")
	}
}

func TestFileBlobStoreCreatesNestedDirs(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileBlobStore(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := "th-TH/th-TH-Default/deadbeef.wav"
	if err := store.Put(context.Background(), key, []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(root, "th-TH", "th-TH-Default", "deadbeef.wav")
	data, ok, err := store.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected file at %s to be readable, ok=%v err=%v", want, ok, err)
	}
	if string(data) != "x" {
		t.Errorf("unexpected data: %q", data)
	}
}
