package anchor

import (
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid"
)

// Generator mints identifiers. GenerateID must return a non-empty string on
// every call. Uniqueness across calls is the generator's concern.
type Generator interface {
	GenerateID() string
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func() string

// GenerateID calls f.
func (f GeneratorFunc) GenerateID() string {
	return f()
}

// UUIDGenerator produces random (version 4) UUIDs in canonical form,
// e.g. "550e8400-e29b-41d4-a716-446655440000". It is the default generator.
type UUIDGenerator struct{}

// GenerateID returns a new UUID string.
func (UUIDGenerator) GenerateID() string {
	return uuid.NewString()
}

// ShortGenerator produces 22 character base57 identifiers, alphanumeric and
// free of look-alike characters, e.g. "cBx3Yb9Rj2TqKZLkXGQv4W".
type ShortGenerator struct{}

// GenerateID returns a new short identifier.
func (ShortGenerator) GenerateID() string {
	return shortuuid.New()
}

var (
	_ Generator = UUIDGenerator{}
	_ Generator = ShortGenerator{}
	_ Generator = GeneratorFunc(nil)
)
