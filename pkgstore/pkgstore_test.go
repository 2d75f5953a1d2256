package pkgstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestPutStatRoundTrip(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "packages"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	content := []byte("skill package bytes")
	wantSum := sha256.Sum256(content)

	size, sum, err := store.Put(context.Background(), "v-1/skill.tar.gz", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("Put size = %d, want %d", size, len(content))
	}
	if sum != hex.EncodeToString(wantSum[:]) {
		t.Errorf("Put checksum = %s, want %s", sum, hex.EncodeToString(wantSum[:]))
	}

	gotSize, gotSum, err := store.Stat(context.Background(), "v-1/skill.tar.gz")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if gotSize != size || gotSum != sum {
		t.Errorf("Stat = (%d, %s), want (%d, %s)", gotSize, gotSum, size, sum)
	}
}

func TestStat_UnknownPath(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "packages"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, _, err := store.Stat(context.Background(), "missing.tar.gz"); err == nil {
		t.Error("Expected error for unknown path")
	}
}

// Paths with parent references stay jailed under the store root.
func TestPut_JailsPaths(t *testing.T) {
	root := t.TempDir()
	store, err := New(filepath.Join(root, "packages"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, _, err := store.Put(context.Background(), "../escape.bin", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "escape.bin")); !os.IsNotExist(err) {
		t.Error("Blob written outside the store root")
	}
	if _, _, err := store.Stat(context.Background(), "escape.bin"); err != nil {
		t.Errorf("Blob not stored under the root: %v", err)
	}
}
