package snapshot

import "context"

// Store persists snapshot documents. Load returns ErrNoSnapshot when the
// store holds nothing.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Load(ctx context.Context) (*Document, error)
	Name() string
}
