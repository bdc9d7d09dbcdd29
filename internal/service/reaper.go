package service

import (
	"context"
	"errors"
	"time"

	"translation-server/internal/models"
	"translation-server/internal/repository"

	"go.uber.org/zap"
)

// reaperBatchLimit — сколько просроченных записей обрабатывается за один проход.
const reaperBatchLimit = 100

// Reaper переводит зависшие in_progress переводы в failed по TTL прогресса.
// Запись с failed доступна для ретрая (failed -> in_progress).
type Reaper struct {
	translationRepo repository.TranslationRepository
	translationSvc  TranslationService
	progressTTL     time.Duration
	interval        time.Duration
	logger          *zap.Logger
}

// NewReaper создает новый Reaper.
func NewReaper(
	translationRepo repository.TranslationRepository,
	translationSvc TranslationService,
	progressTTL time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) *Reaper {
	return &Reaper{
		translationRepo: translationRepo,
		translationSvc:  translationSvc,
		progressTTL:     progressTTL,
		interval:        interval,
		logger:          logger.Named("Reaper"),
	}
}

// Run запускает периодический цикл. Блокирует до отмены контекста.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("progressTTL", r.progressTTL))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("Reaper sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep выполняет один проход: находит просроченные in_progress записи и
// фейлит их по таймауту. CAS-конфликт по конкретной записи не фатален:
// конкурирующий прогресс уже обновил last_progress_at, запись больше не просрочена.
func (r *Reaper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.progressTTL)
	expired, err := r.translationRepo.ListExpiredInProgress(ctx, cutoff, reaperBatchLimit)
	if err != nil {
		return err
	}

	for _, t := range expired {
		if err := r.translationSvc.FailTimedOut(ctx, t); err != nil {
			if errors.Is(err, models.ErrConflict) {
				r.logger.Debug("Translation advanced concurrently, skipping reap",
					zap.String("storyID", t.StoryID.String()),
					zap.String("language", t.Language))
				continue
			}
			r.logger.Error("Failed to reap timed-out translation",
				zap.String("storyID", t.StoryID.String()),
				zap.String("language", t.Language),
				zap.Error(err))
			continue
		}
		r.logger.Warn("Translation failed by progress TTL",
			zap.String("storyID", t.StoryID.String()),
			zap.String("language", t.Language),
			zap.Time("lastProgressAt", t.LastProgressAt))
	}
	return nil
}
