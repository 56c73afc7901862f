package executor

import "github.com/google/uuid"

// IDGenerator produces the default executor name when Config.Name is
// empty; the executor uses it for nothing else. Two implementations mirror the
// teacher's flow-token generator split: UUIDGenerator for production,
// and a fixed generator in internal/testutil for reproducible tests.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates RFC 9562 version-7 (time-ordered) UUIDs.
type UUIDGenerator struct{}

// Generate returns a fresh UUIDv7 string.
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
