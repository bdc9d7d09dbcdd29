package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"translation-server/internal/models"
	"translation-server/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgContentStore implements ContentStore
var _ ContentStore = (*pgContentStore)(nil)

const (
	// Put идемпотентен: повторная вставка того же хэша — no-op.
	putBlobQuery = `
		INSERT INTO content_blobs (hash, payload, size_bytes, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO NOTHING
	`

	getBlobQuery = `SELECT payload FROM content_blobs WHERE hash = $1`

	blobExistsQuery = `SELECT EXISTS(SELECT 1 FROM content_blobs WHERE hash = $1)`
)

type pgContentStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgContentStore создает content-addressed хранилище блобов на PostgreSQL.
func NewPgContentStore(db *pgxpool.Pool, logger *zap.Logger) ContentStore {
	return &pgContentStore{
		db:     db,
		logger: logger.Named("PgContentStore"),
	}
}

// Put сохраняет payload и возвращает его content hash.
func (s *pgContentStore) Put(ctx context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty content payload", models.ErrInvalidInput)
	}
	hash := utils.ContentHash(payload)

	_, err := s.db.Exec(ctx, putBlobQuery, hash, payload, int64(len(payload)), time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to put content blob", zap.String("hash", hash), zap.Error(err))
		return "", fmt.Errorf("ошибка записи блоба %s: %w", hash, err)
	}

	s.logger.Debug("Content blob stored", zap.String("hash", hash), zap.Int("sizeBytes", len(payload)))
	return hash, nil
}

// Get получает payload блоба по хэшу.
func (s *pgContentStore) Get(ctx context.Context, hash string) (json.RawMessage, error) {
	var payload json.RawMessage
	err := s.db.QueryRow(ctx, getBlobQuery, hash).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrContentNotFound
		}
		s.logger.Error("Failed to get content blob", zap.String("hash", hash), zap.Error(err))
		return nil, fmt.Errorf("ошибка чтения блоба %s: %w", hash, err)
	}
	return payload, nil
}

// Exists проверяет наличие блоба.
func (s *pgContentStore) Exists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, blobExistsQuery, hash).Scan(&exists); err != nil {
		s.logger.Error("Failed to check content blob existence", zap.String("hash", hash), zap.Error(err))
		return false, fmt.Errorf("ошибка проверки блоба %s: %w", hash, err)
	}
	return exists, nil
}
