// Package archive stores regulator audit exports: immutable snapshots of the
// transaction ledger written out for offline verification and record keeping.
package archive

import (
	"context"
	"io"
)

// Store is the minimal interface an audit archive backend must satisfy.
type Store interface {
	// Put writes an export under the given key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Exists reports whether an export with the given key is already present.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the retrieval URL for a stored export.
	URL(key string) string
}
