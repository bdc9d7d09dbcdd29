package handler

import (
	"net/http"
	"strconv"

	"translation-server/internal/authutils"
	"translation-server/internal/middleware"
	"translation-server/internal/models"
	"translation-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TranslationHandler обрабатывает HTTP запросы сервиса переводов.
type TranslationHandler struct {
	resolver                  service.FallbackResolver
	assetResolver             service.AssetResolver
	translationSvc            service.TranslationService
	synchronizer              service.Synchronizer
	logger                    *zap.Logger
	interServiceTokenVerifier *authutils.JWTVerifier
}

// NewTranslationHandler создает новый TranslationHandler.
func NewTranslationHandler(
	resolver service.FallbackResolver,
	assetResolver service.AssetResolver,
	translationSvc service.TranslationService,
	synchronizer service.Synchronizer,
	logger *zap.Logger,
	interServiceSecret string,
) *TranslationHandler {
	interServiceVerifier, err := authutils.NewJWTVerifier(interServiceSecret, logger)
	if err != nil {
		logger.Fatal("Failed to create Inter-Service JWT Verifier", zap.Error(err))
	}

	return &TranslationHandler{
		resolver:                  resolver,
		assetResolver:             assetResolver,
		translationSvc:            translationSvc,
		synchronizer:              synchronizer,
		logger:                    logger.Named("TranslationHandler"),
		interServiceTokenVerifier: interServiceVerifier,
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *TranslationHandler) RegisterRoutes(router *gin.Engine) {
	interServiceAuth := middleware.InterServiceAuthMiddleware(h.interServiceTokenVerifier, h.logger)

	// Публичное читающее API: lock-free, без авторизации на этом уровне
	// (внешняя авторизация — забота api-gateway).
	apiGroup := router.Group("/api/stories/:story_id")
	{
		apiGroup.GET("/metadata", h.getStoryMetadata)
		apiGroup.GET("/chapters/:chapter_id", h.getChapterContent)
		apiGroup.GET("/assets/:asset_id", h.getAsset)
	}

	// Межсервисное API: воркеры перевода и пайплайн инжеста.
	internalGroup := router.Group("/internal", interServiceAuth)
	{
		internalGroup.POST("/translations/:story_id/:language/progress", h.submitTranslationProgress)
		internalGroup.POST("/stories/:story_id/sync", h.triggerSync)
	}
}

// parseStoryID достает и валидирует :story_id из пути.
func parseStoryID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("story_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "Invalid story_id format"})
		return uuid.Nil, false
	}
	return id, true
}

// getStoryMetadata обрабатывает GET /api/stories/:story_id/metadata?lang=.
func (h *TranslationHandler) getStoryMetadata(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}
	lang := c.Query("lang")

	res, err := h.resolver.GetStoryMetadata(c.Request.Context(), storyID, lang)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStoryMetadataResponse(res))
}

// getChapterContent обрабатывает GET /api/stories/:story_id/chapters/:chapter_id?lang=.
func (h *TranslationHandler) getChapterContent(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}
	chapterID, err := strconv.Atoi(c.Param("chapter_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "Invalid chapter_id format"})
		return
	}
	lang := c.Query("lang")

	res, err := h.resolver.GetChapterContent(c.Request.Context(), storyID, chapterID, lang)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChapterContentResponse(res))
}

// getAsset обрабатывает GET /api/stories/:story_id/assets/:asset_id?lang=.
func (h *TranslationHandler) getAsset(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}
	assetID := c.Param("asset_id")
	lang := c.Query("lang")

	ref, err := h.assetResolver.Resolve(c.Request.Context(), storyID, lang, assetID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssetResponse{
		AssetID:     assetID,
		Hash:        ref.Hash,
		ContentType: ref.ContentType,
	})
}

// submitTranslationProgress обрабатывает POST /internal/translations/:story_id/:language/progress.
func (h *TranslationHandler) submitTranslationProgress(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}
	language := c.Param("language")
	if language == "" || language == models.SharedAssetLanguage {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "Invalid language"})
		return
	}

	var sub models.ProgressSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.logger.Warn("Failed to bind progress submission", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
		return
	}

	t, err := h.translationSvc.SubmitProgress(c.Request.Context(), storyID, language, sub)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTranslationStatusResponse(t))
}

// triggerSync обрабатывает POST /internal/stories/:story_id/sync.
func (h *TranslationHandler) triggerSync(c *gin.Context) {
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	marked, err := h.synchronizer.Scan(c.Request.Context(), storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if marked == nil {
		marked = []string{}
	}
	c.JSON(http.StatusOK, SyncResponse{
		StoryID:         storyID.String(),
		MarkedLanguages: marked,
	})
}
