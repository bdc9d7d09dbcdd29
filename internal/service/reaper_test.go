package service_test

import (
	"context"
	"testing"
	"time"

	"translation-server/internal/models"
	repoMocks "translation-server/internal/repository/mocks"
	"translation-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReaperSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("expired in_progress translation is failed", func(t *testing.T) {
		expired := &models.Translation{
			StoryID:        uuid.New(),
			Language:       "fr",
			Status:         models.TranslationStatusInProgress,
			LastProgressAt: time.Now().Add(-2 * time.Hour),
			SyncVersion:    4,
		}

		translationRepo := new(repoMocks.TranslationRepository)
		translationRepo.On("ListExpiredInProgress", ctx, mock.AnythingOfType("time.Time"), 100).
			Return([]*models.Translation{expired}, nil).Once()
		translationRepo.On("UpdateCAS", ctx, expired, int64(4)).Return(nil).Once()

		svc := service.NewTranslationService(new(repoMocks.StoryRepository), translationRepo, newMemContentStore(), nil, zap.NewNop())
		reaper := service.NewReaper(translationRepo, svc, time.Hour, time.Minute, zap.NewNop())

		require.NoError(t, reaper.Sweep(ctx))
		assert.Equal(t, models.TranslationStatusFailed, expired.Status)
		require.NotNil(t, expired.ErrorDetails)
		assert.Contains(t, *expired.ErrorDetails, "timed out")
		translationRepo.AssertExpectations(t)
	})

	t.Run("concurrent progress during sweep is not an error", func(t *testing.T) {
		racing := &models.Translation{
			StoryID:        uuid.New(),
			Language:       "de",
			Status:         models.TranslationStatusInProgress,
			LastProgressAt: time.Now().Add(-2 * time.Hour),
			SyncVersion:    2,
		}

		translationRepo := new(repoMocks.TranslationRepository)
		translationRepo.On("ListExpiredInProgress", ctx, mock.AnythingOfType("time.Time"), 100).
			Return([]*models.Translation{racing}, nil).Once()
		// Воркер успел прислать прогресс: CAS проигрывает, запись остается живой.
		translationRepo.On("UpdateCAS", ctx, racing, int64(2)).Return(models.ErrConflict).Once()

		svc := service.NewTranslationService(new(repoMocks.StoryRepository), translationRepo, newMemContentStore(), nil, zap.NewNop())
		reaper := service.NewReaper(translationRepo, svc, time.Hour, time.Minute, zap.NewNop())

		require.NoError(t, reaper.Sweep(ctx))
	})

	t.Run("no expired translations means no writes", func(t *testing.T) {
		translationRepo := new(repoMocks.TranslationRepository)
		translationRepo.On("ListExpiredInProgress", ctx, mock.AnythingOfType("time.Time"), 100).
			Return([]*models.Translation{}, nil).Once()

		svc := service.NewTranslationService(new(repoMocks.StoryRepository), translationRepo, newMemContentStore(), nil, zap.NewNop())
		reaper := service.NewReaper(translationRepo, svc, time.Hour, time.Minute, zap.NewNop())

		require.NoError(t, reaper.Sweep(ctx))
		translationRepo.AssertNotCalled(t, "UpdateCAS", mock.Anything, mock.Anything, mock.Anything)
	})
}
