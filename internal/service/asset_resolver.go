package service

import (
	"context"
	"errors"
	"fmt"

	"translation-server/internal/models"
	"translation-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssetResolver разрешает логический ID ассета в ссылку на блоб с учетом
// языкового приоритета: override запрошенного языка побеждает общую запись.
type AssetResolver interface {
	Resolve(ctx context.Context, storyID uuid.UUID, language, assetID string) (*models.BlobRef, error)
}

type assetResolverImpl struct {
	assetRepo repository.AssetRepository
	logger    *zap.Logger
}

// NewAssetResolver создает новый AssetResolver.
func NewAssetResolver(assetRepo repository.AssetRepository, logger *zap.Logger) AssetResolver {
	return &assetResolverImpl{
		assetRepo: assetRepo,
		logger:    logger.Named("AssetResolver"),
	}
}

// Resolve возвращает ссылку на блоб, никогда не копируя контент:
// общий ассет отдает один и тот же хэш для всех языков без override.
func (r *assetResolverImpl) Resolve(ctx context.Context, storyID uuid.UUID, language, assetID string) (*models.BlobRef, error) {
	if language != "" && language != models.SharedAssetLanguage {
		override, err := r.assetRepo.Get(ctx, storyID, assetID, language)
		if err == nil {
			return &models.BlobRef{Hash: override.BlobHash, ContentType: override.ContentType}, nil
		}
		if !errors.Is(err, models.ErrAssetMissing) {
			return nil, fmt.Errorf("ошибка чтения override-ассета %s/%s/%s: %w", storyID, assetID, language, err)
		}
	}

	shared, err := r.assetRepo.Get(ctx, storyID, assetID, models.SharedAssetLanguage)
	if err != nil {
		if errors.Is(err, models.ErrAssetMissing) {
			r.logger.Debug("Asset not found",
				zap.String("storyID", storyID.String()),
				zap.String("assetID", assetID),
				zap.String("language", language))
			return nil, models.ErrAssetMissing
		}
		return nil, fmt.Errorf("ошибка чтения общего ассета %s/%s: %w", storyID, assetID, err)
	}
	return &models.BlobRef{Hash: shared.BlobHash, ContentType: shared.ContentType}, nil
}

var _ AssetResolver = (*assetResolverImpl)(nil)
