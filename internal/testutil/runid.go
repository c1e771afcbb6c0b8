package testutil

// FixedRunID generates the same run id every time.
//
// Unlike replay.FixedGenerator which returns ids in sequence, this generator
// always returns the same id, so repeated scenario runs log identically.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a fixed run id generator.
//
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed id.
//
// Implements replay.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
