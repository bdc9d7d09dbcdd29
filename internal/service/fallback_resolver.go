package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"translation-server/internal/models"
	"translation-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResolvedStory — результат GetStoryMetadata: манифест плюс флаги разрешения языка.
type ResolvedStory struct {
	StoryID           uuid.UUID
	RequestedLanguage string
	ServedLanguage    string
	FallbackUsed      bool
	NeedsResync       bool
	Manifest          *models.ContentManifest
}

// ResolvedChapter — результат GetChapterContent.
type ResolvedChapter struct {
	ChapterID         int
	RequestedLanguage string
	ServedLanguage    string
	FallbackUsed      bool
	NeedsResync       bool
	Content           *models.ChapterContent
}

// FallbackResolver — единая точка выбора языковой версии для всех читающих
// эндпоинтов. Гарантия: ответ либо на запрошенном языке, либо явно помечен
// флагом fallbackUsed — молчаливой подмены языка не бывает.
type FallbackResolver interface {
	GetStoryMetadata(ctx context.Context, storyID uuid.UUID, language string) (*ResolvedStory, error)
	GetChapterContent(ctx context.Context, storyID uuid.UUID, chapterID int, language string) (*ResolvedChapter, error)
}

type fallbackResolverImpl struct {
	storyRepo       repository.StoryRepository
	translationRepo repository.TranslationRepository
	contentStore    repository.ContentStore
	logger          *zap.Logger
}

// NewFallbackResolver создает новый FallbackResolver.
func NewFallbackResolver(
	storyRepo repository.StoryRepository,
	translationRepo repository.TranslationRepository,
	contentStore repository.ContentStore,
	logger *zap.Logger,
) FallbackResolver {
	return &fallbackResolverImpl{
		storyRepo:       storyRepo,
		translationRepo: translationRepo,
		contentStore:    contentStore,
		logger:          logger.Named("FallbackResolver"),
	}
}

// resolution — внутренний результат resolve: выбранная запись и флаги.
type resolution struct {
	translation       *models.Translation
	requestedLanguage string
	servedLanguage    string
	fallbackUsed      bool
	needsResync       bool
}

// resolve выбирает запись перевода для (история, язык), опционально с учетом
// конкретной главы:
//  1. запрошенный язык servable (completed/stale) — отдаем его;
//  2. запрошенный язык in_progress и нужная глава уже в chapters_completed —
//     отдаем его (частичная выдача, без fallback);
//  3. иначе — origin-язык истории с fallbackUsed=true;
//  4. отсутствие servable origin-перевода — жесткая ошибка.
func (r *fallbackResolverImpl) resolve(ctx context.Context, storyID uuid.UUID, requestedLanguage string, chapterID *int) (*resolution, error) {
	story, err := r.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if requestedLanguage == "" {
		requestedLanguage = story.OriginLanguage
	}

	res := &resolution{requestedLanguage: requestedLanguage}

	t, err := r.translationRepo.Get(ctx, storyID, requestedLanguage)
	if err != nil && !errors.Is(err, models.ErrTranslationNotFound) {
		return nil, fmt.Errorf("ошибка чтения записи перевода %s/%s: %w", storyID, requestedLanguage, err)
	}
	if t != nil {
		if t.IsServable() {
			res.translation = t
			res.servedLanguage = requestedLanguage
			// stale отдаем без блокировки; устаревание — не языковой fallback,
			// а отдельный флаг needsResync.
			res.needsResync = t.NeedsResync || t.Status == models.TranslationStatusStale
			return res, nil
		}
		if t.Status == models.TranslationStatusInProgress && chapterID != nil && t.HasChapter(*chapterID) {
			res.translation = t
			res.servedLanguage = requestedLanguage
			res.needsResync = t.NeedsResync
			return res, nil
		}
	}

	// Перевод отсутствует, planned, failed или нужной главы еще нет: origin.
	origin, err := r.translationRepo.Get(ctx, storyID, story.OriginLanguage)
	if err != nil {
		if errors.Is(err, models.ErrTranslationNotFound) {
			r.logger.Error("Origin translation record is missing",
				zap.String("storyID", storyID.String()),
				zap.String("originLanguage", story.OriginLanguage))
			return nil, ErrOriginTranslationMissing
		}
		return nil, fmt.Errorf("ошибка чтения origin-перевода %s/%s: %w", storyID, story.OriginLanguage, err)
	}
	if !origin.IsServable() {
		r.logger.Error("Origin translation is not servable",
			zap.String("storyID", storyID.String()),
			zap.String("originLanguage", story.OriginLanguage),
			zap.String("status", string(origin.Status)))
		return nil, ErrOriginTranslationMissing
	}

	res.translation = origin
	res.servedLanguage = story.OriginLanguage
	res.fallbackUsed = requestedLanguage != story.OriginLanguage
	res.needsResync = origin.NeedsResync || origin.Status == models.TranslationStatusStale
	return res, nil
}

func (r *fallbackResolverImpl) GetStoryMetadata(ctx context.Context, storyID uuid.UUID, language string) (*ResolvedStory, error) {
	res, err := r.resolve(ctx, storyID, language, nil)
	if err != nil {
		return nil, err
	}

	manifest, err := r.loadManifest(ctx, res.translation.ContentHash)
	if err != nil {
		return nil, err
	}

	return &ResolvedStory{
		StoryID:           storyID,
		RequestedLanguage: res.requestedLanguage,
		ServedLanguage:    res.servedLanguage,
		FallbackUsed:      res.fallbackUsed,
		NeedsResync:       res.needsResync,
		Manifest:          manifest,
	}, nil
}

func (r *fallbackResolverImpl) GetChapterContent(ctx context.Context, storyID uuid.UUID, chapterID int, language string) (*ResolvedChapter, error) {
	res, err := r.resolve(ctx, storyID, language, &chapterID)
	if err != nil {
		return nil, err
	}

	manifest, err := r.loadManifest(ctx, res.translation.ContentHash)
	if err != nil {
		return nil, err
	}

	ref := manifest.FindChapter(chapterID)
	if ref == nil {
		// Глава отсутствует в выбранной версии. Если мы еще не на origin,
		// пробуем origin напрямую; иначе главы не существует вовсе.
		if res.servedLanguage != res.requestedLanguage || res.fallbackUsed {
			return nil, models.ErrChapterNotFound
		}
		originRes, origErr := r.resolve(ctx, storyID, "", nil)
		if origErr != nil {
			return nil, origErr
		}
		if originRes.servedLanguage == res.servedLanguage {
			return nil, models.ErrChapterNotFound
		}
		originManifest, mErr := r.loadManifest(ctx, originRes.translation.ContentHash)
		if mErr != nil {
			return nil, mErr
		}
		ref = originManifest.FindChapter(chapterID)
		if ref == nil {
			return nil, models.ErrChapterNotFound
		}
		res = originRes
		res.requestedLanguage = language
		res.fallbackUsed = true
	}

	payload, err := r.contentStore.Get(ctx, ref.BlobHash)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения блоба главы %d (%s): %w", chapterID, ref.BlobHash, err)
	}
	var content models.ChapterContent
	if err := json.Unmarshal(payload, &content); err != nil {
		return nil, fmt.Errorf("ошибка десериализации главы %d: %w", chapterID, err)
	}

	return &ResolvedChapter{
		ChapterID:         chapterID,
		RequestedLanguage: res.requestedLanguage,
		ServedLanguage:    res.servedLanguage,
		FallbackUsed:      res.fallbackUsed,
		NeedsResync:       res.needsResync,
		Content:           &content,
	}, nil
}

func (r *fallbackResolverImpl) loadManifest(ctx context.Context, hash *string) (*models.ContentManifest, error) {
	if hash == nil || *hash == "" {
		return nil, models.ErrContentNotFound
	}
	payload, err := r.contentStore.Get(ctx, *hash)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста %s: %w", *hash, err)
	}
	var manifest models.ContentManifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return nil, fmt.Errorf("ошибка десериализации манифеста %s: %w", *hash, err)
	}
	return &manifest, nil
}

var _ FallbackResolver = (*fallbackResolverImpl)(nil)
