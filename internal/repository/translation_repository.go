package repository

import (
	"context"
	"time"
	"translation-server/internal/models"

	"github.com/google/uuid"
)

// TranslationRepository defines the interface for the translation record store.
//
// Every mutation goes through UpdateCAS with the sync_version the caller read;
// the store atomically compares-and-swaps, incrementing sync_version on success
// and returning models.ErrConflict otherwise. Translation jobs, synchronizer
// passes and retry logic run concurrently against the same record, so there is
// no lock held across request boundaries.
//
//go:generate mockery --name TranslationRepository --output ./mocks --outpkg mocks --case=underscore
type TranslationRepository interface {
	// Get retrieves a translation by its (story, language) key.
	// Returns models.ErrTranslationNotFound when absent.
	Get(ctx context.Context, storyID uuid.UUID, language string) (*models.Translation, error)

	// ListByStory retrieves all translations of a story.
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Translation, error)

	// ListExpiredInProgress retrieves in_progress translations whose last progress
	// update is older than the cutoff. Used by the TTL reaper.
	ListExpiredInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*models.Translation, error)

	// Create inserts a new translation record with sync_version = 1.
	Create(ctx context.Context, translation *models.Translation) error

	// UpdateCAS commits the given record if its stored sync_version still equals
	// expectedVersion. On success the record's SyncVersion is advanced to
	// expectedVersion+1 (both in the store and on the passed struct). On version
	// mismatch it returns models.ErrConflict without applying the mutation.
	UpdateCAS(ctx context.Context, translation *models.Translation, expectedVersion int64) error
}
