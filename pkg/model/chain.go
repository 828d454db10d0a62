package model

import (
	"strings"

	"github.com/google/uuid"
)

// ModelChain identifies a named, versioned pipeline a worker can execute.
// Two descriptors are the same chain only if their IDs match.
type ModelChain struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewModelChain creates a descriptor with a fresh ID.
func NewModelChain(name, version string) *ModelChain {
	return &ModelChain{
		ID:      "mc_" + uuid.New().String(),
		Name:    name,
		Version: version,
	}
}

// Matches reports whether the chain has the given name and version,
// ignoring case.
func (c *ModelChain) Matches(name, version string) bool {
	return strings.EqualFold(c.Name, name) && strings.EqualFold(c.Version, version)
}
