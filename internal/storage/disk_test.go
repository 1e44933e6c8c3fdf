package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "data.db")
	if err := os.WriteFile(db, []byte("1234"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("123456"), 0644); err != nil {
		t.Fatal(err)
	}

	uploads := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(filepath.Join(uploads, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "nested", "a.txt"), []byte("1234567890"), 0644); err != nil {
		t.Fatal(err)
	}

	got := DiskUsageBytes(db, uploads, "", filepath.Join(dir, "missing"))
	if got != 20 {
		t.Errorf("DiskUsageBytes = %d, want 20 (file + wal sidecar + nested upload)", got)
	}
}

func TestDiskUsageBytesEmpty(t *testing.T) {
	if got := DiskUsageBytes(); got != 0 {
		t.Errorf("DiskUsageBytes() = %d, want 0", got)
	}
}
