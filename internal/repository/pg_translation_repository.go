package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"translation-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure pgTranslationRepository implements TranslationRepository
var _ TranslationRepository = (*pgTranslationRepository)(nil)

const translationFields = `
		t.story_id, t.language, t.status, t.content_hash, t.source_hash_baseline,
		t.quality_score, t.word_count, t.chapter_count, t.chapters_completed,
		t.sync_version, t.needs_resync, t.has_audio, t.audio_status,
		t.error_details, t.last_progress_at, t.created_at, t.updated_at
	`

const (
	getTranslationQuery = `SELECT ` + translationFields + ` FROM translations t WHERE t.story_id = $1 AND t.language = $2`

	listTranslationsByStoryQuery = `SELECT ` + translationFields + ` FROM translations t WHERE t.story_id = $1 ORDER BY t.language`

	listExpiredInProgressQuery = `
		SELECT ` + translationFields + `
		FROM translations t
		WHERE t.status = 'in_progress' AND t.last_progress_at < $1
		ORDER BY t.last_progress_at
		LIMIT $2
	`

	createTranslationQuery = `
		INSERT INTO translations (
			story_id, language, status, content_hash, source_hash_baseline,
			quality_score, word_count, chapter_count, chapters_completed,
			sync_version, needs_resync, has_audio, audio_status,
			error_details, last_progress_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11, $12, $13, $14, $15, $16
		)
	`

	// CAS: строка обновляется только если sync_version не изменился с момента чтения.
	// Инкремент версии и сама мутация — одна атомарная операция.
	updateTranslationCASQuery = `
		UPDATE translations SET
			status = $4,
			content_hash = $5,
			source_hash_baseline = $6,
			quality_score = $7,
			word_count = $8,
			chapter_count = $9,
			chapters_completed = $10,
			sync_version = sync_version + 1,
			needs_resync = $11,
			has_audio = $12,
			audio_status = $13,
			error_details = $14,
			last_progress_at = $15,
			updated_at = NOW()
		WHERE story_id = $1 AND language = $2 AND sync_version = $3
		RETURNING sync_version, updated_at
	`

	translationExistsQuery = `SELECT EXISTS(SELECT 1 FROM translations WHERE story_id = $1 AND language = $2)`
)

type pgTranslationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgTranslationRepository создает новый репозиторий записей перевода на PostgreSQL.
func NewPgTranslationRepository(db *pgxpool.Pool, logger *zap.Logger) TranslationRepository {
	return &pgTranslationRepository{
		db:     db,
		logger: logger.Named("PgTranslationRepo"),
	}
}

// Get получает запись перевода по ключу (story, language).
func (r *pgTranslationRepository) Get(ctx context.Context, storyID uuid.UUID, language string) (*models.Translation, error) {
	logFields := []zap.Field{zap.String("storyID", storyID.String()), zap.String("language", language)}
	r.logger.Debug("Getting translation", logFields...)

	row := r.db.QueryRow(ctx, getTranslationQuery, storyID, language)
	translation, err := scanTranslation(row)
	if err != nil {
		if errors.Is(err, models.ErrTranslationNotFound) {
			r.logger.Debug("Translation not found", logFields...)
			return nil, models.ErrTranslationNotFound
		}
		r.logger.Error("Failed to get translation", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("ошибка получения перевода (%s, %s): %w", storyID, language, err)
	}
	return translation, nil
}

// ListByStory получает все переводы истории.
func (r *pgTranslationRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Translation, error) {
	rows, err := r.db.Query(ctx, listTranslationsByStoryQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to list translations", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка переводов истории %s: %w", storyID, err)
	}
	defer rows.Close()

	var translations []*models.Translation
	for rows.Next() {
		translation, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования перевода истории %s: %w", storyID, err)
		}
		translations = append(translations, translation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по переводам истории %s: %w", storyID, err)
	}
	return translations, nil
}

// ListExpiredInProgress получает in_progress переводы без прогресса дольше cutoff.
func (r *pgTranslationRepository) ListExpiredInProgress(ctx context.Context, cutoff time.Time, limit int) ([]*models.Translation, error) {
	rows, err := r.db.Query(ctx, listExpiredInProgressQuery, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list expired in_progress translations", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения просроченных переводов: %w", err)
	}
	defer rows.Close()

	var translations []*models.Translation
	for rows.Next() {
		translation, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования просроченного перевода: %w", err)
		}
		translations = append(translations, translation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по просроченным переводам: %w", err)
	}
	return translations, nil
}

// Create создает новую запись перевода с sync_version = 1.
func (r *pgTranslationRepository) Create(ctx context.Context, t *models.Translation) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.LastProgressAt.IsZero() {
		t.LastProgressAt = now
	}
	t.SyncVersion = 1
	if t.AudioStatus == "" {
		t.AudioStatus = models.AudioStatusNone
	}

	chaptersJSON, err := marshalChapters(t.ChaptersCompleted)
	if err != nil {
		return err
	}

	logFields := []zap.Field{
		zap.String("storyID", t.StoryID.String()),
		zap.String("language", t.Language),
		zap.String("status", string(t.Status)),
	}
	r.logger.Debug("Creating translation", logFields...)

	_, err = r.db.Exec(ctx, createTranslationQuery,
		t.StoryID,            // $1
		t.Language,           // $2
		t.Status,             // $3
		t.ContentHash,        // $4
		t.SourceHashBaseline, // $5
		t.QualityScore,       // $6
		t.WordCount,          // $7
		t.ChapterCount,       // $8
		chaptersJSON,         // $9
		t.NeedsResync,        // $10
		t.HasAudio,           // $11
		t.AudioStatus,        // $12
		t.ErrorDetails,       // $13
		t.LastProgressAt,     // $14
		t.CreatedAt,          // $15
		t.UpdatedAt,          // $16
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Гонка двух первых отправок прогресса: запись уже создана конкурентом.
			r.logger.Debug("Translation already exists, reporting conflict", logFields...)
			return models.ErrConflict
		}
		r.logger.Error("Failed to create translation", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания перевода (%s, %s): %w", t.StoryID, t.Language, err)
	}

	r.logger.Info("Translation created", logFields...)
	return nil
}

// UpdateCAS коммитит запись, только если sync_version в БД равен expectedVersion.
// Ноль обновленных строк означает либо конфликт версий, либо отсутствие записи —
// различаем дополнительной проверкой существования.
func (r *pgTranslationRepository) UpdateCAS(ctx context.Context, t *models.Translation, expectedVersion int64) error {
	chaptersJSON, err := marshalChapters(t.ChaptersCompleted)
	if err != nil {
		return err
	}

	logFields := []zap.Field{
		zap.String("storyID", t.StoryID.String()),
		zap.String("language", t.Language),
		zap.String("status", string(t.Status)),
		zap.Int64("expectedVersion", expectedVersion),
	}
	r.logger.Debug("CAS update of translation", logFields...)

	row := r.db.QueryRow(ctx, updateTranslationCASQuery,
		t.StoryID,            // $1
		t.Language,           // $2
		expectedVersion,      // $3
		t.Status,             // $4
		t.ContentHash,        // $5
		t.SourceHashBaseline, // $6
		t.QualityScore,       // $7
		t.WordCount,          // $8
		t.ChapterCount,       // $9
		chaptersJSON,         // $10
		t.NeedsResync,        // $11
		t.HasAudio,           // $12
		t.AudioStatus,        // $13
		t.ErrorDetails,       // $14
		t.LastProgressAt,     // $15
	)

	var newVersion int64
	var updatedAt time.Time
	if err := row.Scan(&newVersion, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо версия уехала, либо записи нет вовсе
			var exists bool
			if exErr := r.db.QueryRow(ctx, translationExistsQuery, t.StoryID, t.Language).Scan(&exists); exErr != nil {
				r.logger.Error("Failed to check translation existence after CAS miss", append(logFields, zap.Error(exErr))...)
				return fmt.Errorf("ошибка проверки существования перевода после CAS: %w", exErr)
			}
			if !exists {
				return models.ErrTranslationNotFound
			}
			r.logger.Debug("CAS conflict on translation update", logFields...)
			return models.ErrConflict
		}
		r.logger.Error("Failed CAS update of translation", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка CAS-обновления перевода (%s, %s): %w", t.StoryID, t.Language, err)
	}

	t.SyncVersion = newVersion
	t.UpdatedAt = updatedAt
	r.logger.Debug("Translation updated", append(logFields, zap.Int64("newVersion", newVersion))...)
	return nil
}

// marshalChapters сериализует chapters_completed в jsonb-представление.
func marshalChapters(chapters []int) ([]byte, error) {
	if chapters == nil {
		chapters = []int{}
	}
	data, err := json.Marshal(chapters)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации chapters_completed: %w", err)
	}
	return data, nil
}

// scanTranslation сканирует одну строку в models.Translation.
// Работает и с pgx.Row, и с pgx.Rows.
func scanTranslation(row pgx.Row) (*models.Translation, error) {
	var t models.Translation
	var chaptersJSON []byte

	err := row.Scan(
		&t.StoryID,
		&t.Language,
		&t.Status,
		&t.ContentHash,
		&t.SourceHashBaseline,
		&t.QualityScore,
		&t.WordCount,
		&t.ChapterCount,
		&chaptersJSON,
		&t.SyncVersion,
		&t.NeedsResync,
		&t.HasAudio,
		&t.AudioStatus,
		&t.ErrorDetails,
		&t.LastProgressAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTranslationNotFound
		}
		return nil, err
	}

	if len(chaptersJSON) > 0 {
		if err := json.Unmarshal(chaptersJSON, &t.ChaptersCompleted); err != nil {
			return nil, fmt.Errorf("ошибка десериализации chapters_completed: %w", err)
		}
	}
	if t.ChaptersCompleted == nil {
		t.ChaptersCompleted = []int{}
	}
	return &t, nil
}
