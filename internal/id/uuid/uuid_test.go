// Package uuid includes tests for the job ID generator.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated job IDs are unique, parseable UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := gen.NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate job ID %s", id)
		}
		seen[id] = true
		if _, err := goUUID.Parse(id); err != nil {
			t.Fatalf("id %s not a valid UUID: %v", id, err)
		}
	}
}
