package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"translation-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	pgxV5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgAssetRepository implements AssetRepository
var _ AssetRepository = (*pgAssetRepository)(nil)

const (
	getAssetQuery = `
		SELECT story_id, asset_id, language, blob_hash, content_type, created_at, updated_at
		FROM assets
		WHERE story_id = $1 AND asset_id = $2 AND language = $3
	`

	listAssetsByStoryQuery = `
		SELECT story_id, asset_id, language, blob_hash, content_type, created_at, updated_at
		FROM assets
		WHERE story_id = $1
		ORDER BY asset_id, language
	`

	upsertAssetQuery = `
		INSERT INTO assets (story_id, asset_id, language, blob_hash, content_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (story_id, asset_id, language) DO UPDATE SET
			blob_hash = EXCLUDED.blob_hash,
			content_type = EXCLUDED.content_type,
			updated_at = NOW()
	`

	deleteAssetQuery = `DELETE FROM assets WHERE story_id = $1 AND asset_id = $2 AND language = $3`
)

type pgAssetRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgAssetRepository создает новый репозиторий ассетов на PostgreSQL.
func NewPgAssetRepository(db *pgxpool.Pool, logger *zap.Logger) AssetRepository {
	return &pgAssetRepository{
		db:     db,
		logger: logger.Named("PgAssetRepo"),
	}
}

// Get возвращает точную запись ассета для (story, asset, language).
func (r *pgAssetRepository) Get(ctx context.Context, storyID uuid.UUID, assetID, language string) (*models.Asset, error) {
	log := r.logger.With(
		zap.String("storyID", storyID.String()),
		zap.String("assetID", assetID),
		zap.String("language", language),
	)

	var asset models.Asset
	err := pgxscan.Get(ctx, r.db, &asset, getAssetQuery, storyID, assetID, language)
	if err != nil {
		if errors.Is(err, pgxV5.ErrNoRows) {
			log.Debug("Asset row not found")
			return nil, models.ErrAssetMissing
		}
		log.Error("Error getting asset", zap.Error(err))
		return nil, fmt.Errorf("failed to get asset %s/%s/%s: %w", storyID, assetID, language, err)
	}
	return &asset, nil
}

// Upsert вставляет или заменяет запись ассета (общую или языковой override).
func (r *pgAssetRepository) Upsert(ctx context.Context, asset *models.Asset) error {
	if asset.Language == "" {
		asset.Language = models.SharedAssetLanguage
	}
	log := r.logger.With(
		zap.String("storyID", asset.StoryID.String()),
		zap.String("assetID", asset.AssetID),
		zap.String("language", asset.Language),
		zap.String("blobHash", asset.BlobHash),
	)

	_, err := r.db.Exec(ctx, upsertAssetQuery,
		asset.StoryID, asset.AssetID, asset.Language, asset.BlobHash, asset.ContentType)
	if err != nil {
		log.Error("Error upserting asset", zap.Error(err))
		return fmt.Errorf("failed to upsert asset %s/%s/%s: %w", asset.StoryID, asset.AssetID, asset.Language, err)
	}
	asset.UpdatedAt = time.Now().UTC()
	log.Info("Asset upserted")
	return nil
}

// Delete удаляет запись ассета. Удаление override возвращает резолв к общей записи.
func (r *pgAssetRepository) Delete(ctx context.Context, storyID uuid.UUID, assetID, language string) error {
	log := r.logger.With(
		zap.String("storyID", storyID.String()),
		zap.String("assetID", assetID),
		zap.String("language", language),
	)

	tag, err := r.db.Exec(ctx, deleteAssetQuery, storyID, assetID, language)
	if err != nil {
		log.Error("Error deleting asset", zap.Error(err))
		return fmt.Errorf("failed to delete asset %s/%s/%s: %w", storyID, assetID, language, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAssetMissing
	}
	log.Info("Asset deleted")
	return nil
}

// ListByStory возвращает все записи ассетов истории.
func (r *pgAssetRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Asset, error) {
	var assets []*models.Asset
	err := pgxscan.Select(ctx, r.db, &assets, listAssetsByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Error listing assets", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list assets of story %s: %w", storyID, err)
	}
	return assets, nil
}
