package service

import (
	"context"
	"errors"
	"fmt"

	"translation-server/internal/messaging"
	"translation-server/internal/models"
	"translation-server/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	syncScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_sync_scanned_total",
		Help: "Количество записей перевода, проверенных синхронизатором.",
	})
	syncMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_sync_marked_total",
		Help: "Количество переводов, помеченных устаревшими (needs_resync).",
	})
	syncConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_sync_conflicts_total",
		Help: "Количество CAS-конфликтов при пометке переводов.",
	})
)

// Synchronizer помечает переводы устаревшими после изменения контента оригинала.
// Никогда не снимает needs_resync: флаг сбрасывается только переходом перевода
// в completed с новым source_hash_baseline.
type Synchronizer interface {
	// Scan сравнивает source_hash_baseline каждого servable перевода истории с
	// актуальным master_content_hash и помечает расхождения. Возвращает языки,
	// помеченные этим проходом. Идемпотентен: повторный проход без изменения
	// мастера не делает записей.
	Scan(ctx context.Context, storyID uuid.UUID) ([]string, error)

	// ApplyMasterUpdate записывает новый master_content_hash истории и сразу
	// запускает Scan. Вызывается консьюмером master_content_updates.
	ApplyMasterUpdate(ctx context.Context, storyID uuid.UUID, newHash string) ([]string, error)
}

type synchronizerImpl struct {
	storyRepo       repository.StoryRepository
	translationRepo repository.TranslationRepository
	eventPub        messaging.TranslationEventPublisher // может быть nil
	logger          *zap.Logger
}

// NewSynchronizer создает новый Synchronizer.
func NewSynchronizer(
	storyRepo repository.StoryRepository,
	translationRepo repository.TranslationRepository,
	eventPub messaging.TranslationEventPublisher,
	logger *zap.Logger,
) Synchronizer {
	return &synchronizerImpl{
		storyRepo:       storyRepo,
		translationRepo: translationRepo,
		eventPub:        eventPub,
		logger:          logger.Named("Synchronizer"),
	}
}

func (s *synchronizerImpl) Scan(ctx context.Context, storyID uuid.UUID) ([]string, error) {
	log := s.logger.With(zap.String("storyID", storyID.String()))

	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}

	translations, err := s.translationRepo.ListByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения переводов истории %s: %w", storyID, err)
	}

	var marked []string
	for _, t := range translations {
		syncScannedTotal.Inc()
		if !s.isStaleAgainst(t, story.MasterContentHash) {
			continue
		}
		if err := s.markStale(ctx, t, story.MasterContentHash); err != nil {
			if errors.Is(err, models.ErrConflict) {
				// Конкурент уже продвинул запись; расхождение поймает следующий проход.
				log.Warn("CAS conflict while marking translation stale, skipping",
					zap.String("language", t.Language))
				continue
			}
			return marked, err
		}
		marked = append(marked, t.Language)
		syncMarkedTotal.Inc()
		s.publishStale(ctx, t)
	}

	if len(marked) > 0 {
		log.Info("Synchronizer scan marked translations as stale", zap.Strings("languages", marked))
	}
	return marked, nil
}

func (s *synchronizerImpl) ApplyMasterUpdate(ctx context.Context, storyID uuid.UUID, newHash string) ([]string, error) {
	if err := s.storyRepo.UpdateMasterContentHash(ctx, storyID, newHash); err != nil {
		return nil, fmt.Errorf("ошибка обновления master_content_hash истории %s: %w", storyID, err)
	}
	s.logger.Info("Master content hash updated",
		zap.String("storyID", storyID.String()),
		zap.String("masterContentHash", newHash))
	return s.Scan(ctx, storyID)
}

// isStaleAgainst решает, требует ли запись пометки относительно мастер-хэша.
// Origin-перевод (baseline == master по построению) и уже помеченные записи пропускаются.
func (s *synchronizerImpl) isStaleAgainst(t *models.Translation, masterHash string) bool {
	if !t.IsServable() {
		return false
	}
	if t.SourceHashBaseline == nil || *t.SourceHashBaseline == masterHash {
		return false
	}
	alreadyStale := t.Status == models.TranslationStatusStale
	return !t.NeedsResync || !alreadyStale
}

// markStale выполняет CAS-пометку с одним re-read при конфликте.
func (s *synchronizerImpl) markStale(ctx context.Context, t *models.Translation, masterHash string) error {
	expected := t.SyncVersion
	if err := s.applyStale(ctx, t, expected); err == nil || !errors.Is(err, models.ErrConflict) {
		return err
	}
	syncConflictsTotal.Inc()

	// Перечитываем и пере-оцениваем: конкурирующий писатель мог завершить
	// перевод с новым baseline, и пометка уже не нужна.
	fresh, err := s.translationRepo.Get(ctx, t.StoryID, t.Language)
	if err != nil {
		return fmt.Errorf("ошибка перечитывания записи %s/%s после конфликта: %w", t.StoryID, t.Language, err)
	}
	if !s.isStaleAgainst(fresh, masterHash) {
		return models.ErrConflict
	}
	*t = *fresh
	return s.applyStale(ctx, t, fresh.SyncVersion)
}

func (s *synchronizerImpl) applyStale(ctx context.Context, t *models.Translation, expectedVersion int64) error {
	if t.Status == models.TranslationStatusCompleted {
		if err := Transition(t, models.TranslationStatusStale); err != nil {
			return err
		}
	}
	t.NeedsResync = true
	return s.translationRepo.UpdateCAS(ctx, t, expectedVersion)
}

func (s *synchronizerImpl) publishStale(ctx context.Context, t *models.Translation) {
	if s.eventPub == nil {
		return
	}
	event := messaging.TranslationEvent{
		StoryID:     t.StoryID.String(),
		Language:    t.Language,
		EventType:   messaging.TranslationEventStale,
		NeedsResync: true,
	}
	if err := s.eventPub.PublishTranslationEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish stale event",
			zap.String("storyID", t.StoryID.String()),
			zap.String("language", t.Language),
			zap.Error(err))
	}
}

var _ Synchronizer = (*synchronizerImpl)(nil)
