// Package sha256 includes tests for the SHA-256 hasher.
package sha256

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

// TestHasherHashDeterministic ensures repeated hashing yields the same digest.
func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.HashReader(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}
	again, err := h.HashReader(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("HashReader() repeat error = %v", err)
	}
	if again != got {
		t.Fatalf("expected deterministic hash, got %s vs %s", got, again)
	}
}

// TestHasherStreamsMatchBytes ensures reader and file digests match the known digest.
func TestHasherStreamsMatchBytes(t *testing.T) {
	t.Parallel()

	h := New()
	fromReader, err := h.HashReader(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}
	if fromReader != helloDigest {
		t.Fatalf("expected %s, got %s", helloDigest, fromReader)
	}

	path := filepath.Join(t.TempDir(), "requirements.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	fromFile, err := h.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if fromFile != helloDigest {
		t.Fatalf("expected %s, got %s", helloDigest, fromFile)
	}
}

// TestHasherHashFileMissing reports missing files.
func TestHasherHashFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := New().HashFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
