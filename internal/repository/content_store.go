package repository

import (
	"context"
	"encoding/json"
)

// ContentStore defines the interface for the content-addressed blob store.
//
// Blobs are immutable: the key is the sha256 hex digest of the payload, so a
// repeated Put of the same payload is a no-op. The store knows nothing about
// stories or languages. Write flows commit blob-then-pointer: the blob is
// written here first, and only then is the translation record pointer updated
// as the commit point. A crash between the two steps leaves an orphaned,
// harmless blob, never a record pointing at missing content.
//
//go:generate mockery --name ContentStore --output ./mocks --outpkg mocks --case=underscore
type ContentStore interface {
	// Put stores the payload and returns its content hash. Idempotent.
	Put(ctx context.Context, payload []byte) (string, error)

	// Get retrieves a blob payload by hash.
	// Returns models.ErrContentNotFound when absent.
	Get(ctx context.Context, hash string) (json.RawMessage, error)

	// Exists reports whether a blob with the given hash is stored.
	Exists(ctx context.Context, hash string) (bool, error)
}
