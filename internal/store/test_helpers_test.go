package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a connected store backed by a temp file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedRecords writes records or fails the test.
func seedRecords(t *testing.T, s *Store, records ...Record) {
	t.Helper()
	if err := s.WriteRecords(context.Background(), records); err != nil {
		t.Fatalf("WriteRecords() failed: %v", err)
	}
}
