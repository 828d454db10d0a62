package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// MultiStore writes to every backend and reads from the first one that
// holds a snapshot.
type MultiStore struct {
	stores []Store
}

// NewMultiStore combines stores in read-preference order.
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

func (m *MultiStore) Name() string {
	names := make([]string, len(m.stores))
	for i, s := range m.stores {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Save writes to all backends; a failing backend does not stop the others.
func (m *MultiStore) Save(ctx context.Context, doc *Document) error {
	var result *multierror.Error
	for _, s := range m.stores {
		if err := s.Save(ctx, doc); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

// Load returns the first snapshot found. Backend errors are only reported
// when no backend produced a document.
func (m *MultiStore) Load(ctx context.Context) (*Document, error) {
	var result *multierror.Error
	for _, s := range m.stores {
		doc, err := s.Load(ctx)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, ErrNoSnapshot) {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return nil, ErrNoSnapshot
}

// Close closes every backend that holds resources.
func (m *MultiStore) Close() error {
	var result *multierror.Error
	for _, s := range m.stores {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}
