package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"translation-server/internal/handler"
	"translation-server/internal/models"
	"translation-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testInterServiceSecret = "test-inter-service-secret"

// --- Моки сервисного слоя ---

type fallbackResolverMock struct{ mock.Mock }

func (m *fallbackResolverMock) GetStoryMetadata(ctx context.Context, storyID uuid.UUID, language string) (*service.ResolvedStory, error) {
	args := m.Called(ctx, storyID, language)
	res, _ := args.Get(0).(*service.ResolvedStory)
	return res, args.Error(1)
}

func (m *fallbackResolverMock) GetChapterContent(ctx context.Context, storyID uuid.UUID, chapterID int, language string) (*service.ResolvedChapter, error) {
	args := m.Called(ctx, storyID, chapterID, language)
	res, _ := args.Get(0).(*service.ResolvedChapter)
	return res, args.Error(1)
}

type assetResolverMock struct{ mock.Mock }

func (m *assetResolverMock) Resolve(ctx context.Context, storyID uuid.UUID, language, assetID string) (*models.BlobRef, error) {
	args := m.Called(ctx, storyID, language, assetID)
	ref, _ := args.Get(0).(*models.BlobRef)
	return ref, args.Error(1)
}

type translationServiceMock struct{ mock.Mock }

func (m *translationServiceMock) SubmitProgress(ctx context.Context, storyID uuid.UUID, language string, sub models.ProgressSubmission) (*models.Translation, error) {
	args := m.Called(ctx, storyID, language, sub)
	t, _ := args.Get(0).(*models.Translation)
	return t, args.Error(1)
}

func (m *translationServiceMock) FailTimedOut(ctx context.Context, t *models.Translation) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

type synchronizerMock struct{ mock.Mock }

func (m *synchronizerMock) Scan(ctx context.Context, storyID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, storyID)
	langs, _ := args.Get(0).([]string)
	return langs, args.Error(1)
}

func (m *synchronizerMock) ApplyMasterUpdate(ctx context.Context, storyID uuid.UUID, newHash string) ([]string, error) {
	args := m.Called(ctx, storyID, newHash)
	langs, _ := args.Get(0).([]string)
	return langs, args.Error(1)
}

type handlerFixture struct {
	router      *gin.Engine
	resolver    *fallbackResolverMock
	assets      *assetResolverMock
	translation *translationServiceMock
	sync        *synchronizerMock
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &handlerFixture{
		resolver:    new(fallbackResolverMock),
		assets:      new(assetResolverMock),
		translation: new(translationServiceMock),
		sync:        new(synchronizerMock),
	}
	h := handler.NewTranslationHandler(f.resolver, f.assets, f.translation, f.sync, zap.NewNop(), testInterServiceSecret)
	f.router = gin.New()
	h.RegisterRoutes(f.router)
	return f
}

func makeServiceToken(t *testing.T, secret string) string {
	t.Helper()
	claims := models.ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "translation-worker",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestGetStoryMetadataEndpoint(t *testing.T) {
	storyID := uuid.New()

	t.Run("returns resolved metadata", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.resolver.On("GetStoryMetadata", mock.Anything, storyID, "es").Return(&service.ResolvedStory{
			StoryID:           storyID,
			RequestedLanguage: "es",
			ServedLanguage:    "en",
			FallbackUsed:      true,
			Manifest: &models.ContentManifest{
				Title:       "Grayhaven",
				Description: "A story about a city",
				Chapters:    []models.ChapterRef{{ID: 1, Number: 1, Title: "Chapter 1", BlobHash: "hash-1"}},
			},
		}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/metadata?lang=es", storyID), nil)
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "es", resp["requestedLanguage"])
		assert.Equal(t, "en", resp["servedLanguage"])
		assert.Equal(t, true, resp["fallbackUsed"])
	})

	t.Run("invalid story id is a 400", func(t *testing.T) {
		f := newHandlerFixture(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stories/not-a-uuid/metadata", nil)
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("service errors map to status codes", func(t *testing.T) {
		cases := []struct {
			name   string
			err    error
			status int
		}{
			{"story not found", models.ErrStoryNotFound, http.StatusNotFound},
			{"origin missing", service.ErrOriginTranslationMissing, http.StatusNotFound},
			{"cas conflict", models.ErrConflict, http.StatusConflict},
			{"too many conflicts", service.ErrTooManyConflicts, http.StatusConflict},
			{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newHandlerFixture(t)
				f.resolver.On("GetStoryMetadata", mock.Anything, storyID, "").Return(nil, tc.err)

				w := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/metadata", storyID), nil)
				f.router.ServeHTTP(w, req)
				assert.Equal(t, tc.status, w.Code)
			})
		}
	})
}

func TestGetChapterContentEndpoint(t *testing.T) {
	storyID := uuid.New()

	t.Run("returns chapter blocks", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.resolver.On("GetChapterContent", mock.Anything, storyID, 2, "fr").Return(&service.ResolvedChapter{
			ChapterID:         2,
			RequestedLanguage: "fr",
			ServedLanguage:    "fr",
			Content: &models.ChapterContent{
				ID:     2,
				Number: 2,
				Title:  "Chapitre 2",
				Blocks: []json.RawMessage{json.RawMessage(`{"type":"paragraph"}`)},
			},
		}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/chapters/2?lang=fr", storyID), nil)
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(2), resp["chapterId"])
		assert.Equal(t, "fr", resp["servedLanguage"])
	})

	t.Run("chapter not found maps to 404", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.resolver.On("GetChapterContent", mock.Anything, storyID, 99, "").Return(nil, models.ErrChapterNotFound)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/chapters/99", storyID), nil)
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-numeric chapter id is a 400", func(t *testing.T) {
		f := newHandlerFixture(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/chapters/abc", storyID), nil)
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetAssetEndpoint(t *testing.T) {
	storyID := uuid.New()

	t.Run("returns blob ref", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.assets.On("Resolve", mock.Anything, storyID, "ja", "cover").Return(&models.BlobRef{
			Hash:        "hash-ja",
			ContentType: "image/png",
		}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/assets/cover?lang=ja", storyID), nil)
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp handler.AssetResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "cover", resp.AssetID)
		assert.Equal(t, "hash-ja", resp.Hash)
	})

	t.Run("missing asset maps to 404", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.assets.On("Resolve", mock.Anything, storyID, "", "map").Return(nil, models.ErrAssetMissing)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/stories/%s/assets/map", storyID), nil)
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSubmitProgressEndpoint(t *testing.T) {
	storyID := uuid.New()
	progressURL := func(lang string) string {
		return fmt.Sprintf("/internal/translations/%s/%s/progress", storyID, lang)
	}

	t.Run("rejects request without inter-service token", func(t *testing.T) {
		f := newHandlerFixture(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, progressURL("fr"), strings.NewReader(`{}`))
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects token signed with a different secret", func(t *testing.T) {
		f := newHandlerFixture(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, progressURL("fr"), strings.NewReader(`{}`))
		req.Header.Set("X-Internal-Service-Token", makeServiceToken(t, "wrong-secret"))
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts progress and returns record state", func(t *testing.T) {
		f := newHandlerFixture(t)
		record := &models.Translation{
			StoryID:           storyID,
			Language:          "fr",
			Status:            models.TranslationStatusInProgress,
			ChaptersCompleted: []int{1},
			SyncVersion:       2,
		}
		f.translation.On("SubmitProgress", mock.Anything, storyID, "fr", mock.MatchedBy(func(sub models.ProgressSubmission) bool {
			return len(sub.Chapters) == 1 && !sub.IsFinal
		})).Return(record, nil)

		body := `{"chapters":[{"id":1,"number":1,"title":"Chapitre 1","wordCount":40,"blocks":[{"type":"paragraph"}]}]}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, progressURL("fr"), strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Internal-Service-Token", makeServiceToken(t, testInterServiceSecret))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp handler.TranslationStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "in_progress", resp.Status)
		assert.Equal(t, []int{1}, resp.ChaptersCompleted)
	})

	t.Run("validation failure maps to 422", func(t *testing.T) {
		f := newHandlerFixture(t)
		failedRecord := &models.Translation{
			StoryID:  storyID,
			Language: "fr",
			Status:   models.TranslationStatusFailed,
		}
		vErr := &models.ValidationError{Reason: models.ValidationReasonWordVariance, Details: "variance 0.35"}
		f.translation.On("SubmitProgress", mock.Anything, storyID, "fr", mock.Anything).Return(failedRecord, vErr)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, progressURL("fr"), strings.NewReader(`{"isFinal":true}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Internal-Service-Token", makeServiceToken(t, testInterServiceSecret))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp handler.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.ValidationReasonWordVariance, resp.Reason)
	})

	t.Run("illegal transition maps to 409", func(t *testing.T) {
		f := newHandlerFixture(t)
		trErr := &models.InvalidTransitionError{
			From: models.TranslationStatusCompleted,
			To:   models.TranslationStatusInProgress,
		}
		f.translation.On("SubmitProgress", mock.Anything, storyID, "fr", mock.Anything).Return(nil, trErr)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, progressURL("fr"), strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Internal-Service-Token", makeServiceToken(t, testInterServiceSecret))
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestTriggerSyncEndpoint(t *testing.T) {
	storyID := uuid.New()
	syncURL := fmt.Sprintf("/internal/stories/%s/sync", storyID)

	t.Run("runs scan and reports marked languages", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.sync.On("Scan", mock.Anything, storyID).Return([]string{"fr", "ja"}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, syncURL, nil)
		req.Header.Set("X-Internal-Service-Token", makeServiceToken(t, testInterServiceSecret))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp handler.SyncResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"fr", "ja"}, resp.MarkedLanguages)
	})

	t.Run("nothing to mark returns empty list", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.sync.On("Scan", mock.Anything, storyID).Return(nil, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, syncURL, nil)
		req.Header.Set("X-Internal-Service-Token", makeServiceToken(t, testInterServiceSecret))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"markedLanguages":[]`)
	})

	t.Run("requires inter-service token", func(t *testing.T) {
		f := newHandlerFixture(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, syncURL, nil)
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
