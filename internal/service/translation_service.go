package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"translation-server/internal/messaging"
	"translation-server/internal/models"
	"translation-server/internal/repository"
	"translation-server/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Допустимое отклонение объема перевода от оригинала: |1 - tw/ow| <= 0.20.
const wordCountVarianceLimit = 0.20

// casMaxAttempts — сколько раз перечитываем запись при CAS-конфликте,
// прежде чем вернуть ошибку вызывающему. Перечитывание обязательно:
// конкурирующий писатель мог изменить валидность нашей мутации.
const casMaxAttempts = 3

// TranslationService — state machine переводов: единственная точка мутации
// записей Translation.
type TranslationService interface {
	// SubmitProgress мержит порцию прогресса в запись перевода и, если набор
	// объявлен финальным, выполняет валидацию перехода в completed.
	// Возвращает обновленную запись; при провале валидации запись переходит в
	// failed, а ошибка имеет тип *models.ValidationError.
	SubmitProgress(ctx context.Context, storyID uuid.UUID, language string, sub models.ProgressSubmission) (*models.Translation, error)

	// FailTimedOut переводит in_progress запись в failed по таймауту прогресса.
	// Используется реапером.
	FailTimedOut(ctx context.Context, t *models.Translation) error
}

type translationServiceImpl struct {
	storyRepo       repository.StoryRepository
	translationRepo repository.TranslationRepository
	contentStore    repository.ContentStore
	eventPub        messaging.TranslationEventPublisher // может быть nil (тесты, автономный запуск)
	logger          *zap.Logger
}

// NewTranslationService создает новый TranslationService.
func NewTranslationService(
	storyRepo repository.StoryRepository,
	translationRepo repository.TranslationRepository,
	contentStore repository.ContentStore,
	eventPub messaging.TranslationEventPublisher,
	logger *zap.Logger,
) TranslationService {
	return &translationServiceImpl{
		storyRepo:       storyRepo,
		translationRepo: translationRepo,
		contentStore:    contentStore,
		eventPub:        eventPub,
		logger:          logger.Named("TranslationService"),
	}
}

func (s *translationServiceImpl) SubmitProgress(ctx context.Context, storyID uuid.UUID, language string, sub models.ProgressSubmission) (*models.Translation, error) {
	log := s.logger.With(
		zap.String("storyID", storyID.String()),
		zap.String("language", language),
		zap.Int("chapters", len(sub.Chapters)),
		zap.Bool("isFinal", sub.IsFinal),
	)

	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}

	if sub.IsFinal && len(sub.Chapters) == 0 {
		// Финальная отправка без глав валидна, только если главы уже смержены
		// прошлыми порциями — совсем пустую запись отсекаем сразу.
		existing, getErr := s.translationRepo.Get(ctx, storyID, language)
		if errors.Is(getErr, models.ErrTranslationNotFound) || (existing != nil && len(existing.ChaptersCompleted) == 0) {
			return nil, ErrNoChaptersSubmitted
		}
	}

	// Блобы глав коммитим в content store ДО обновления указателя записи
	// (blob-then-pointer). Упавший процесс оставит сиротские блобы, но никогда —
	// запись, указывающую на отсутствующий контент.
	chapterRefs, err := s.commitChapterBlobs(ctx, sub.Chapters)
	if err != nil {
		return nil, err
	}

	// CAS-цикл: читаем запись, вычисляем мутацию, коммитим с версией чтения.
	// Конфликт означает, что конкурирующий писатель продвинул запись —
	// перечитываем и пересчитываем, а не повторяем ту же мутацию вслепую.
	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		translation, created, err := s.getOrCreate(ctx, storyID, language, sub)
		if err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue // параллельный Create выиграл гонку, перечитываем
			}
			return nil, err
		}

		expectedVersion := translation.SyncVersion

		_, applyErr := s.applySubmission(ctx, story, translation, sub, chapterRefs)
		if applyErr != nil {
			// Нелегальный переход или инфраструктурная ошибка — без записи.
			var vErr *models.ValidationError
			if !errors.As(applyErr, &vErr) {
				return nil, applyErr
			}
			// Провал валидации: запись переходит в failed и КОММИТИТСЯ —
			// история failed-попыток сохраняется для аудита и ретрая.
			if commitErr := s.commitRecord(ctx, translation, created, expectedVersion); commitErr != nil {
				if errors.Is(commitErr, models.ErrConflict) {
					log.Debug("CAS conflict while committing failed validation, re-reading")
					continue
				}
				return nil, commitErr
			}
			s.publishEvent(ctx, translation, messaging.TranslationEventFailed)
			return translation, applyErr
		}

		if commitErr := s.commitRecord(ctx, translation, created, expectedVersion); commitErr != nil {
			if errors.Is(commitErr, models.ErrConflict) {
				log.Debug("CAS conflict on progress merge, re-reading", zap.Int("attempt", attempt+1))
				continue
			}
			return nil, commitErr
		}

		if translation.Status == models.TranslationStatusCompleted {
			s.publishEvent(ctx, translation, messaging.TranslationEventCompleted)
		}
		log.Info("Translation progress recorded",
			zap.String("status", string(translation.Status)),
			zap.Int("chaptersCompleted", len(translation.ChaptersCompleted)),
			zap.Int64("syncVersion", translation.SyncVersion))
		return translation, nil
	}

	log.Warn("Giving up after repeated CAS conflicts")
	return nil, ErrTooManyConflicts
}

// commitRecord персистит запись: новую — через Create, существующую — через CAS.
// Дубликат ключа при Create репозиторий репортит как ErrConflict (гонка двух
// первых отправок), и вызывающий перечитывает запись.
func (s *translationServiceImpl) commitRecord(ctx context.Context, t *models.Translation, created bool, expectedVersion int64) error {
	if created {
		return s.translationRepo.Create(ctx, t)
	}
	return s.translationRepo.UpdateCAS(ctx, t, expectedVersion)
}

// getOrCreate читает запись перевода или создает новую.
// Новая запись создается в planned (пустая заявка) или in_progress.
// created=true означает, что applySubmission должен вычислить поля ДО Create —
// см. вызов в SubmitProgress.
func (s *translationServiceImpl) getOrCreate(ctx context.Context, storyID uuid.UUID, language string, sub models.ProgressSubmission) (*models.Translation, bool, error) {
	translation, err := s.translationRepo.Get(ctx, storyID, language)
	if err == nil {
		return translation, false, nil
	}
	if !errors.Is(err, models.ErrTranslationNotFound) {
		return nil, false, err
	}

	status := models.TranslationStatusInProgress
	if len(sub.Chapters) == 0 && !sub.IsFinal {
		status = models.TranslationStatusPlanned
	}
	translation = &models.Translation{
		StoryID:           storyID,
		Language:          language,
		Status:            status,
		ChaptersCompleted: []int{},
		AudioStatus:       models.AudioStatusNone,
		LastProgressAt:    time.Now().UTC(),
	}
	return translation, true, nil
}

// commitChapterBlobs пишет payload каждой присланной главы (и ее аудио)
// в content store и возвращает ссылки для манифеста.
func (s *translationServiceImpl) commitChapterBlobs(ctx context.Context, chapters []models.ChapterSubmission) (map[int]models.ChapterRef, error) {
	refs := make(map[int]models.ChapterRef, len(chapters))
	for _, ch := range chapters {
		content := models.ChapterContent{
			ID:        ch.ID,
			Number:    ch.Number,
			Title:     ch.Title,
			WordCount: ch.WordCount,
			Blocks:    ch.Blocks,
		}
		payload, err := utils.CanonicalJSON(content)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации главы %d: %w", ch.ID, err)
		}
		hash, err := s.contentStore.Put(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("ошибка коммита блоба главы %d: %w", ch.ID, err)
		}

		ref := models.ChapterRef{ID: ch.ID, Number: ch.Number, Title: ch.Title, BlobHash: hash}
		if len(ch.AudioPayload) > 0 {
			audioHash, err := s.contentStore.Put(ctx, ch.AudioPayload)
			if err != nil {
				return nil, fmt.Errorf("ошибка коммита аудио главы %d: %w", ch.ID, err)
			}
			ref.AudioHash = &audioHash
		}
		refs[ch.ID] = ref
	}
	return refs, nil
}

// applySubmission мержит порцию в запись и выполняет переходы статуса.
// Мутирует translation; вызывающий отвечает за коммит через CAS.
func (s *translationServiceImpl) applySubmission(
	ctx context.Context,
	story *models.Story,
	translation *models.Translation,
	sub models.ProgressSubmission,
	chapterRefs map[int]models.ChapterRef,
) (*models.ContentManifest, error) {
	// Любая порция прогресса означает активную работу над переводом.
	targetStatus := models.TranslationStatusInProgress
	if translation.Status == models.TranslationStatusPlanned && len(sub.Chapters) == 0 && !sub.IsFinal {
		targetStatus = models.TranslationStatusPlanned // пустой ping не двигает planned
	}
	if err := Transition(translation, targetStatus); err != nil {
		return nil, err
	}

	// Мерж: существующий манифест + присланные главы (пересланная глава перезаписывается).
	merged, err := s.mergeChapters(ctx, translation, chapterRefs)
	if err != nil {
		return nil, err
	}

	manifest := &models.ContentManifest{
		Title:       sub.Title,
		Description: sub.Description,
		Chapters:    merged,
	}
	if manifest.Title == "" || manifest.Description == "" {
		// Инкрементальные порции могут не повторять метаданные — берем прежние.
		if prev, prevErr := s.loadManifest(ctx, translation.ContentHash); prevErr == nil && prev != nil {
			if manifest.Title == "" {
				manifest.Title = prev.Title
			}
			if manifest.Description == "" {
				manifest.Description = prev.Description
			}
		}
	}

	totalWords, emptyChapters, err := s.manifestWordCount(ctx, manifest)
	if err != nil {
		return nil, err
	}

	// Глав оригинала может еще не быть (инжест самой origin-записи) — тогда
	// ориентируемся на число смерженных глав.
	originChapterCount := len(merged)
	var originManifest *models.ContentManifest
	var originWords int
	if origin, originErr := s.originTranslation(ctx, story); originErr == nil {
		if m, mErr := s.loadManifest(ctx, origin.ContentHash); mErr == nil && m != nil {
			originManifest = m
			originChapterCount = len(m.Chapters)
		}
		originWords = origin.WordCount
	}

	now := time.Now().UTC()
	translation.ChaptersCompleted = sortedChapterIDs(merged)
	translation.ChapterCount = originChapterCount
	translation.WordCount = totalWords
	translation.LastProgressAt = now
	translation.HasAudio = manifestHasAudio(manifest)
	if translation.HasAudio {
		translation.AudioStatus = models.AudioStatusReady
	}

	if !sub.IsFinal {
		// Частичный манифест тоже коммитится: progressive serving в in_progress
		// отдает уже переведенные главы напрямую.
		if err := s.commitManifest(ctx, translation, manifest); err != nil {
			return nil, err
		}
		translation.ErrorDetails = nil
		return manifest, nil
	}

	// Финальная отправка: валидация перехода in_progress -> completed.
	if vErr := s.validateCompleted(originManifest, originWords, manifest, totalWords, emptyChapters); vErr != nil {
		if trErr := Transition(translation, models.TranslationStatusFailed); trErr != nil {
			return nil, trErr
		}
		msg := vErr.Error()
		translation.ErrorDetails = &msg
		// Смерженный контент остается закоммиченным и пригодным для ретрая.
		if err := s.commitManifest(ctx, translation, manifest); err != nil {
			return nil, err
		}
		return manifest, vErr
	}

	if err := Transition(translation, models.TranslationStatusCompleted); err != nil {
		return nil, err
	}
	if err := s.commitManifest(ctx, translation, manifest); err != nil {
		return nil, err
	}
	baseline := story.MasterContentHash
	translation.SourceHashBaseline = &baseline
	translation.NeedsResync = false
	translation.QualityScore = sub.QualityScore
	translation.ErrorDetails = nil
	return manifest, nil
}

// mergeChapters объединяет главы существующего манифеста с присланными.
func (s *translationServiceImpl) mergeChapters(ctx context.Context, translation *models.Translation, submitted map[int]models.ChapterRef) ([]models.ChapterRef, error) {
	byID := make(map[int]models.ChapterRef)
	if prev, err := s.loadManifest(ctx, translation.ContentHash); err != nil {
		return nil, err
	} else if prev != nil {
		for _, ref := range prev.Chapters {
			byID[ref.ID] = ref
		}
	}
	for id, ref := range submitted {
		byID[id] = ref
	}

	merged := make([]models.ChapterRef, 0, len(byID))
	for _, ref := range byID {
		merged = append(merged, ref)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Number != merged[j].Number {
			return merged[i].Number < merged[j].Number
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

// commitManifest пишет манифест в content store и обновляет указатель записи.
func (s *translationServiceImpl) commitManifest(ctx context.Context, translation *models.Translation, manifest *models.ContentManifest) error {
	hash, payload, err := utils.HashOf(manifest)
	if err != nil {
		return fmt.Errorf("ошибка сериализации манифеста: %w", err)
	}
	if _, err := s.contentStore.Put(ctx, payload); err != nil {
		return fmt.Errorf("ошибка коммита манифеста: %w", err)
	}
	translation.ContentHash = &hash
	return nil
}

// manifestHasAudio сообщает, есть ли хотя бы у одной главы озвучка.
func manifestHasAudio(manifest *models.ContentManifest) bool {
	for _, ref := range manifest.Chapters {
		if ref.AudioHash != nil && *ref.AudioHash != "" {
			return true
		}
	}
	return false
}

// loadManifest читает манифест по хэшу. nil-хэш — nil-манифест без ошибки.
func (s *translationServiceImpl) loadManifest(ctx context.Context, hash *string) (*models.ContentManifest, error) {
	if hash == nil || *hash == "" {
		return nil, nil
	}
	payload, err := s.contentStore.Get(ctx, *hash)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста %s: %w", *hash, err)
	}
	var manifest models.ContentManifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return nil, fmt.Errorf("ошибка десериализации манифеста %s: %w", *hash, err)
	}
	return &manifest, nil
}

// manifestWordCount суммирует word count глав манифеста по их блобам.
// Вторым значением возвращает ID глав без единого блока контента:
// self-reported word count без блоков — не контент.
func (s *translationServiceImpl) manifestWordCount(ctx context.Context, manifest *models.ContentManifest) (int, []int, error) {
	total := 0
	var empty []int
	for _, ref := range manifest.Chapters {
		payload, err := s.contentStore.Get(ctx, ref.BlobHash)
		if err != nil {
			return 0, nil, fmt.Errorf("ошибка чтения главы %d: %w", ref.ID, err)
		}
		var content models.ChapterContent
		if err := json.Unmarshal(payload, &content); err != nil {
			return 0, nil, fmt.Errorf("ошибка десериализации главы %d: %w", ref.ID, err)
		}
		if len(content.Blocks) == 0 {
			empty = append(empty, ref.ID)
		}
		total += content.WordCount
	}
	return total, empty, nil
}

// originTranslation возвращает запись перевода на языке оригинала.
func (s *translationServiceImpl) originTranslation(ctx context.Context, story *models.Story) (*models.Translation, error) {
	origin, err := s.translationRepo.Get(ctx, story.ID, story.OriginLanguage)
	if err != nil {
		if errors.Is(err, models.ErrTranslationNotFound) {
			return nil, ErrOriginTranslationMissing
		}
		return nil, err
	}
	return origin, nil
}

// validateCompleted выполняет проверки перехода in_progress -> completed:
// полнота набора глав, отклонение объема, обязательные поля.
func (s *translationServiceImpl) validateCompleted(
	originManifest *models.ContentManifest,
	originWords int,
	manifest *models.ContentManifest,
	totalWords int,
	emptyChapters []int,
) error {
	if len(manifest.Chapters) == 0 {
		return &models.ValidationError{
			Reason:  models.ValidationReasonIncomplete,
			Details: "no chapters submitted",
		}
	}

	// Обязательные поля: title, description, контент каждой главы.
	var missing []string
	if strings.TrimSpace(manifest.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(manifest.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return &models.ValidationError{
			Reason:  models.ValidationReasonMissingFields,
			Details: strings.Join(missing, ", "),
		}
	}

	// Контент каждой главы обязателен: глава без блоков непригодна к отдаче,
	// каким бы ни был ее self-reported word count.
	if len(emptyChapters) > 0 {
		return &models.ValidationError{
			Reason:  models.ValidationReasonEmptyChapter,
			Details: fmt.Sprintf("chapters without content: %s", joinInts(emptyChapters)),
		}
	}

	// Полнота: каждой главе оригинала соответствует переведенная глава, и наоборот —
	// глава без соответствия в оригинале означает рассинхрон логических ID.
	if originManifest != nil {
		var absent []string
		present := make(map[int]struct{}, len(manifest.Chapters))
		for _, ref := range manifest.Chapters {
			present[ref.ID] = struct{}{}
		}
		originIDs := make(map[int]struct{}, len(originManifest.Chapters))
		for _, ref := range originManifest.Chapters {
			originIDs[ref.ID] = struct{}{}
			if _, ok := present[ref.ID]; !ok {
				absent = append(absent, fmt.Sprintf("%d", ref.ID))
			}
		}
		if len(absent) > 0 {
			return &models.ValidationError{
				Reason:  models.ValidationReasonIncomplete,
				Details: fmt.Sprintf("missing chapters: %s", strings.Join(absent, ", ")),
			}
		}
		var unknown []int
		for _, ref := range manifest.Chapters {
			if _, ok := originIDs[ref.ID]; !ok {
				unknown = append(unknown, ref.ID)
			}
		}
		if len(unknown) > 0 {
			return &models.ValidationError{
				Reason:  models.ValidationReasonUnknownChapter,
				Details: fmt.Sprintf("chapters absent from origin: %s", joinInts(unknown)),
			}
		}
	}

	// Отклонение объема: |1 - tw/ow| <= 0.20.
	if originWords > 0 {
		variance := math.Abs(1 - float64(totalWords)/float64(originWords))
		if variance > wordCountVarianceLimit {
			return &models.ValidationError{
				Reason:  models.ValidationReasonWordVariance,
				Details: fmt.Sprintf("variance %.2f exceeds %.2f (translated %d words, origin %d)", variance, wordCountVarianceLimit, totalWords, originWords),
			}
		}
	}

	return nil
}

// FailTimedOut переводит in_progress запись в failed по TTL прогресса.
func (s *translationServiceImpl) FailTimedOut(ctx context.Context, t *models.Translation) error {
	expectedVersion := t.SyncVersion
	if err := Transition(t, models.TranslationStatusFailed); err != nil {
		return err
	}
	msg := fmt.Sprintf("translation timed out: no progress since %s", t.LastProgressAt.UTC().Format(time.RFC3339))
	t.ErrorDetails = &msg

	if err := s.translationRepo.UpdateCAS(ctx, t, expectedVersion); err != nil {
		return err
	}
	s.publishEvent(ctx, t, messaging.TranslationEventFailed)
	s.logger.Info("Stalled translation reaped",
		zap.String("storyID", t.StoryID.String()),
		zap.String("language", t.Language))
	return nil
}

// publishEvent отправляет событие клиентам; ошибка публикации не фейлит операцию.
func (s *translationServiceImpl) publishEvent(ctx context.Context, t *models.Translation, eventType string) {
	if s.eventPub == nil {
		return
	}
	event := messaging.TranslationEvent{
		StoryID:     t.StoryID.String(),
		Language:    t.Language,
		EventType:   eventType,
		NeedsResync: t.NeedsResync,
	}
	if err := s.eventPub.PublishTranslationEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish translation event",
			zap.String("storyID", t.StoryID.String()),
			zap.String("language", t.Language),
			zap.String("eventType", eventType),
			zap.Error(err))
	}
}

// sortedChapterIDs возвращает отсортированные логические ID глав манифеста.
func sortedChapterIDs(chapters []models.ChapterRef) []int {
	ids := make([]int, 0, len(chapters))
	for _, ref := range chapters {
		ids = append(ids, ref.ID)
	}
	return utils.SortedInts(ids)
}

// joinInts форматирует ID глав для деталей ошибки валидации.
func joinInts(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range utils.SortedInts(ids) {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ", ")
}
