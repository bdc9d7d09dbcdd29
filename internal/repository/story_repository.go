package repository

import (
	"context"
	"translation-server/internal/models"

	"github.com/google/uuid"
)

// StoryRepository defines the interface for interacting with story data.
//
//go:generate mockery --name StoryRepository --output ./mocks --outpkg mocks --case=underscore
type StoryRepository interface {
	// Create inserts a new story record. Used by the ingestion path and tests.
	Create(ctx context.Context, story *models.Story) error

	// GetByID retrieves a story by its unique ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)

	// UpdateMasterContentHash sets a new master content hash after an origin-language edit.
	// Called by the master-content-updates consumer before a synchronizer scan.
	UpdateMasterContentHash(ctx context.Context, id uuid.UUID, hash string) error
}
