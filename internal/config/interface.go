package config

import (
	"context"
	"errors"
)

// ErrNoDocuments is returned by a Loader when none of the given paths holds
// a document in its format.
var ErrNoDocuments = errors.New("no topology documents found")

// Loader is the interface for a format-specific topology loader.
type Loader interface {
	// Load reads every topology document found under paths (files or
	// directories), merges them and returns the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Topology, error)
}
