package mocks

import (
	"context"
	"encoding/json"
	"time"

	"translation-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

func (m *StoryRepository) UpdateMasterContentHash(ctx context.Context, id uuid.UUID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

// Mock TranslationRepository
type TranslationRepository struct {
	mock.Mock
}

func (m *TranslationRepository) Get(ctx context.Context, storyID uuid.UUID, language string) (*models.Translation, error) {
	args := m.Called(ctx, storyID, language)
	translation, _ := args.Get(0).(*models.Translation)
	return translation, args.Error(1)
}

func (m *TranslationRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Translation, error) {
	args := m.Called(ctx, storyID)
	translations, _ := args.Get(0).([]*models.Translation)
	return translations, args.Error(1)
}

func (m *TranslationRepository) ListExpiredInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*models.Translation, error) {
	args := m.Called(ctx, cutoff, limit)
	translations, _ := args.Get(0).([]*models.Translation)
	return translations, args.Error(1)
}

func (m *TranslationRepository) Create(ctx context.Context, translation *models.Translation) error {
	args := m.Called(ctx, translation)
	if args.Error(0) == nil {
		// Повторяем поведение стора: новая запись получает версию 1
		translation.SyncVersion = 1
	}
	return args.Error(0)
}

func (m *TranslationRepository) UpdateCAS(ctx context.Context, translation *models.Translation, expectedVersion int64) error {
	args := m.Called(ctx, translation, expectedVersion)
	if args.Error(0) == nil {
		// Повторяем поведение стора: успешный CAS двигает версию
		translation.SyncVersion = expectedVersion + 1
	}
	return args.Error(0)
}

// Mock ContentStore
type ContentStore struct {
	mock.Mock
}

func (m *ContentStore) Put(ctx context.Context, payload []byte) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func (m *ContentStore) Get(ctx context.Context, hash string) (json.RawMessage, error) {
	args := m.Called(ctx, hash)
	payload, _ := args.Get(0).(json.RawMessage)
	return payload, args.Error(1)
}

func (m *ContentStore) Exists(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

// Mock AssetRepository
type AssetRepository struct {
	mock.Mock
}

func (m *AssetRepository) Get(ctx context.Context, storyID uuid.UUID, assetID, language string) (*models.Asset, error) {
	args := m.Called(ctx, storyID, assetID, language)
	asset, _ := args.Get(0).(*models.Asset)
	return asset, args.Error(1)
}

func (m *AssetRepository) Upsert(ctx context.Context, asset *models.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *AssetRepository) Delete(ctx context.Context, storyID uuid.UUID, assetID, language string) error {
	args := m.Called(ctx, storyID, assetID, language)
	return args.Error(0)
}

func (m *AssetRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Asset, error) {
	args := m.Called(ctx, storyID)
	assets, _ := args.Get(0).([]*models.Asset)
	return assets, args.Error(1)
}
