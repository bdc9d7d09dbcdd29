package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"translation-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgStoryRepository implements StoryRepository
var _ StoryRepository = (*pgStoryRepository)(nil)

const storyFields = `
		s.id, s.language_group_id, s.origin_language, s.is_origin, s.master_content_hash,
		s.title, s.description, s.rating_avg, s.rating_count, s.created_at, s.updated_at
	`

const (
	createStoryQuery = `
		INSERT INTO stories (
			id, language_group_id, origin_language, is_origin, master_content_hash,
			title, description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	getStoryByIDQuery = `SELECT ` + storyFields + ` FROM stories s WHERE s.id = $1`

	updateMasterHashQuery = `
		UPDATE stories SET master_content_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
)

type pgStoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStoryRepository создает новый репозиторий историй на PostgreSQL.
func NewPgStoryRepository(db *pgxpool.Pool, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

// Create создает новую запись истории.
func (r *pgStoryRepository) Create(ctx context.Context, story *models.Story) error {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	now := time.Now().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now

	logFields := []zap.Field{
		zap.String("storyID", story.ID.String()),
		zap.String("originLanguage", story.OriginLanguage),
		zap.Bool("isOrigin", story.IsOrigin),
	}
	r.logger.Debug("Creating story", logFields...)

	_, err := r.db.Exec(ctx, createStoryQuery,
		story.ID,                // $1
		story.LanguageGroupID,   // $2
		story.OriginLanguage,    // $3
		story.IsOrigin,          // $4
		story.MasterContentHash, // $5
		story.Title,             // $6
		story.Description,       // $7
		story.CreatedAt,         // $8
		story.UpdatedAt,         // $9
	)
	if err != nil {
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания истории %s: %w", story.ID, err)
	}

	r.logger.Info("Story created", logFields...)
	return nil
}

// GetByID получает историю по ее ID.
func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var s models.Story
	err := r.db.QueryRow(ctx, getStoryByIDQuery, id).Scan(
		&s.ID,
		&s.LanguageGroupID,
		&s.OriginLanguage,
		&s.IsOrigin,
		&s.MasterContentHash,
		&s.Title,
		&s.Description,
		&s.RatingAvg,
		&s.RatingCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Story not found", zap.String("storyID", id.String()))
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", id, err)
	}
	return &s, nil
}

// UpdateMasterContentHash обновляет master_content_hash после правки оригинала.
func (r *pgStoryRepository) UpdateMasterContentHash(ctx context.Context, id uuid.UUID, hash string) error {
	logFields := []zap.Field{zap.String("storyID", id.String()), zap.String("masterContentHash", hash)}
	tag, err := r.db.Exec(ctx, updateMasterHashQuery, id, hash)
	if err != nil {
		r.logger.Error("Failed to update master content hash", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка обновления master_content_hash истории %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Story not found for master hash update", logFields...)
		return models.ErrStoryNotFound
	}
	r.logger.Info("Master content hash updated", logFields...)
	return nil
}
