// Package testutil holds shared test helpers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rcmelo/snkbridge/internal/journal"
)

// TempJournal creates a migrated run ledger in a temporary directory.
func TempJournal(t *testing.T) *journal.Journal {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Failed to open test journal: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j
}

// WriteFile writes content to a file in a temporary directory.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
