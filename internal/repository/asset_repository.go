package repository

import (
	"context"
	"translation-server/internal/models"

	"github.com/google/uuid"
)

// AssetRepository defines the interface for the logical asset index.
//
// A row with language == models.SharedAssetLanguage is the shared blob used by
// all languages; a row with a concrete language is a per-language override.
// Precedence is applied by the AssetResolver, not here.
//
//go:generate mockery --name AssetRepository --output ./mocks --outpkg mocks --case=underscore
type AssetRepository interface {
	// Get retrieves the exact asset row for (story, asset, language).
	// Returns models.ErrAssetMissing when absent.
	Get(ctx context.Context, storyID uuid.UUID, assetID, language string) (*models.Asset, error)

	// Upsert inserts or replaces an asset row (shared or override).
	Upsert(ctx context.Context, asset *models.Asset) error

	// Delete removes an asset row. Removing an override makes subsequent
	// resolutions transparently revert to the shared row.
	Delete(ctx context.Context, storyID uuid.UUID, assetID, language string) error

	// ListByStory retrieves all asset rows of a story.
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Asset, error)
}
