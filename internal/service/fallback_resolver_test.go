package service_test

import (
	"context"
	"testing"

	"translation-server/internal/models"
	repoMocks "translation-server/internal/repository/mocks"
	"translation-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// resolverFixture собирает резолвер с origin-переводом en из двух глав.
type resolverFixture struct {
	store           *memContentStore
	story           *models.Story
	origin          *models.Translation
	storyRepo       *repoMocks.StoryRepository
	translationRepo *repoMocks.TranslationRepository
	resolver        service.FallbackResolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	store := newMemContentStore()
	story := testStory("master-v1")
	origin := setupOrigin(t, store, story, 100, 1, 2)

	storyRepo := new(repoMocks.StoryRepository)
	translationRepo := new(repoMocks.TranslationRepository)
	storyRepo.On("GetByID", context.Background(), story.ID).Return(story, nil)
	translationRepo.On("Get", context.Background(), story.ID, "en").Return(origin, nil)

	return &resolverFixture{
		store:           store,
		story:           story,
		origin:          origin,
		storyRepo:       storyRepo,
		translationRepo: translationRepo,
		resolver:        service.NewFallbackResolver(storyRepo, translationRepo, store, zap.NewNop()),
	}
}

func TestGetStoryMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("no translation falls back to origin with explicit flag", func(t *testing.T) {
		f := newResolverFixture(t)
		f.translationRepo.On("Get", ctx, f.story.ID, "es").Return(nil, models.ErrTranslationNotFound)

		res, err := f.resolver.GetStoryMetadata(ctx, f.story.ID, "es")
		require.NoError(t, err)
		assert.Equal(t, "es", res.RequestedLanguage)
		assert.Equal(t, "en", res.ServedLanguage)
		assert.True(t, res.FallbackUsed)
		assert.Equal(t, "Grayhaven", res.Manifest.Title)
	})

	t.Run("completed translation serves natively", func(t *testing.T) {
		f := newResolverFixture(t)
		hash := mustPutManifest(t, f.store, models.ContentManifest{
			Title:       "Grisehavre",
			Description: "Une histoire",
			Chapters:    []models.ChapterRef{mustPutChapter(t, f.store, 1, 1, 50)},
		})
		baseline := "master-v1"
		es := &models.Translation{
			StoryID:            f.story.ID,
			Language:           "es",
			Status:             models.TranslationStatusCompleted,
			ContentHash:        &hash,
			SourceHashBaseline: &baseline,
			ChaptersCompleted:  []int{1},
			SyncVersion:        2,
		}
		f.translationRepo.On("Get", ctx, f.story.ID, "es").Return(es, nil)

		res, err := f.resolver.GetStoryMetadata(ctx, f.story.ID, "es")
		require.NoError(t, err)
		assert.Equal(t, "es", res.ServedLanguage)
		assert.False(t, res.FallbackUsed)
		assert.False(t, res.NeedsResync)
		assert.Equal(t, "Grisehavre", res.Manifest.Title)
	})

	t.Run("stale translation is served with the resync flag, not blocked", func(t *testing.T) {
		f := newResolverFixture(t)
		hash := mustPutManifest(t, f.store, models.ContentManifest{
			Title:       "Grisehavre",
			Description: "Une histoire",
			Chapters:    []models.ChapterRef{mustPutChapter(t, f.store, 1, 1, 50)},
		})
		oldBaseline := "master-v0"
		es := &models.Translation{
			StoryID:            f.story.ID,
			Language:           "es",
			Status:             models.TranslationStatusStale,
			ContentHash:        &hash,
			SourceHashBaseline: &oldBaseline,
			NeedsResync:        true,
			ChaptersCompleted:  []int{1},
			SyncVersion:        3,
		}
		f.translationRepo.On("Get", ctx, f.story.ID, "es").Return(es, nil)

		res, err := f.resolver.GetStoryMetadata(ctx, f.story.ID, "es")
		require.NoError(t, err)
		assert.Equal(t, "es", res.ServedLanguage, "устаревший контент отдается, не блокируется")
		assert.False(t, res.FallbackUsed, "устаревание — не языковой fallback")
		assert.True(t, res.NeedsResync)
	})

	t.Run("failed translation falls back to origin", func(t *testing.T) {
		f := newResolverFixture(t)
		failed := &models.Translation{
			StoryID:     f.story.ID,
			Language:    "es",
			Status:      models.TranslationStatusFailed,
			SyncVersion: 2,
		}
		f.translationRepo.On("Get", ctx, f.story.ID, "es").Return(failed, nil)

		res, err := f.resolver.GetStoryMetadata(ctx, f.story.ID, "es")
		require.NoError(t, err)
		assert.Equal(t, "en", res.ServedLanguage)
		assert.True(t, res.FallbackUsed)
	})

	t.Run("empty language defaults to origin without fallback flag", func(t *testing.T) {
		f := newResolverFixture(t)

		res, err := f.resolver.GetStoryMetadata(ctx, f.story.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "en", res.RequestedLanguage)
		assert.Equal(t, "en", res.ServedLanguage)
		assert.False(t, res.FallbackUsed)
	})

	t.Run("missing origin translation is a hard error", func(t *testing.T) {
		store := newMemContentStore()
		story := testStory("master-v1")
		storyRepo := new(repoMocks.StoryRepository)
		translationRepo := new(repoMocks.TranslationRepository)
		storyRepo.On("GetByID", ctx, story.ID).Return(story, nil)
		translationRepo.On("Get", ctx, story.ID, "es").Return(nil, models.ErrTranslationNotFound)
		translationRepo.On("Get", ctx, story.ID, "en").Return(nil, models.ErrTranslationNotFound)

		resolver := service.NewFallbackResolver(storyRepo, translationRepo, store, zap.NewNop())

		_, err := resolver.GetStoryMetadata(ctx, story.ID, "es")
		assert.ErrorIs(t, err, service.ErrOriginTranslationMissing)
	})

	t.Run("unknown story propagates not found", func(t *testing.T) {
		storyRepo := new(repoMocks.StoryRepository)
		translationRepo := new(repoMocks.TranslationRepository)
		story := testStory("master-v1")
		storyRepo.On("GetByID", ctx, story.ID).Return(nil, models.ErrStoryNotFound)

		resolver := service.NewFallbackResolver(storyRepo, translationRepo, newMemContentStore(), zap.NewNop())

		_, err := resolver.GetStoryMetadata(ctx, story.ID, "es")
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
	})
}

func TestGetChapterContent(t *testing.T) {
	ctx := context.Background()

	// fr in_progress с готовыми главами 1 и 2 из 2 (глава 3 есть только в origin-сценарии ниже).
	newInProgressFR := func(t *testing.T, f *resolverFixture, chapters ...int) *models.Translation {
		refs := make([]models.ChapterRef, 0, len(chapters))
		for i, id := range chapters {
			refs = append(refs, mustPutChapter(t, f.store, id, i+1, 40))
		}
		hash := mustPutManifest(t, f.store, models.ContentManifest{
			Title:       "Grisehavre",
			Description: "Une histoire",
			Chapters:    refs,
		})
		return &models.Translation{
			StoryID:           f.story.ID,
			Language:          "fr",
			Status:            models.TranslationStatusInProgress,
			ContentHash:       &hash,
			ChaptersCompleted: chapters,
			SyncVersion:       2,
		}
	}

	t.Run("completed chapter of in_progress translation serves natively", func(t *testing.T) {
		f := newResolverFixture(t)
		fr := newInProgressFR(t, f, 1, 2)
		f.translationRepo.On("Get", ctx, f.story.ID, "fr").Return(fr, nil)

		res, err := f.resolver.GetChapterContent(ctx, f.story.ID, 2, "fr")
		require.NoError(t, err)
		assert.Equal(t, "fr", res.ServedLanguage)
		assert.False(t, res.FallbackUsed)
		assert.Equal(t, 2, res.Content.ID)
	})

	t.Run("untranslated chapter of in_progress translation falls back to origin", func(t *testing.T) {
		f := newResolverFixture(t)
		fr := newInProgressFR(t, f, 1)
		f.translationRepo.On("Get", ctx, f.story.ID, "fr").Return(fr, nil)

		res, err := f.resolver.GetChapterContent(ctx, f.story.ID, 2, "fr")
		require.NoError(t, err)
		assert.Equal(t, "en", res.ServedLanguage)
		assert.True(t, res.FallbackUsed)
		assert.Equal(t, 2, res.Content.ID)
	})

	t.Run("chapter absent everywhere is not found", func(t *testing.T) {
		f := newResolverFixture(t)
		f.translationRepo.On("Get", ctx, f.story.ID, "fr").Return(nil, models.ErrTranslationNotFound)

		_, err := f.resolver.GetChapterContent(ctx, f.story.ID, 99, "fr")
		assert.ErrorIs(t, err, models.ErrChapterNotFound)
	})
}
