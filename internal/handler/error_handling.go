package handler

import (
	"errors"
	"net/http"

	"translation-server/internal/models"
	"translation-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleServiceError транслирует ошибки сервисного слоя в HTTP-статусы.
// Таксономия: not-found семейство — 404, провал финальной валидации — 422
// (запись остается failed и доступна для ретрая), CAS-конфликты — 409,
// нелегальный переход статуса — 409, мусор на входе — 400, остальное — 500.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp APIError

	var vErr *models.ValidationError
	var tErr *models.InvalidTransitionError

	switch {
	case errors.As(err, &vErr):
		statusCode = http.StatusUnprocessableEntity
		errResp = APIError{Message: vErr.Error(), Reason: vErr.Reason}
	case errors.As(err, &tErr):
		statusCode = http.StatusConflict
		errResp = APIError{Message: tErr.Error()}
	case errors.Is(err, models.ErrConflict), errors.Is(err, service.ErrTooManyConflicts):
		statusCode = http.StatusConflict
		errResp = APIError{Message: "Record was modified concurrently, retry the request"}
	case errors.Is(err, models.ErrStoryNotFound):
		statusCode = http.StatusNotFound
		errResp = APIError{Message: "Story not found"}
	case errors.Is(err, models.ErrTranslationNotFound),
		errors.Is(err, service.ErrOriginTranslationMissing):
		statusCode = http.StatusNotFound
		errResp = APIError{Message: "No servable translation found for this story"}
	case errors.Is(err, models.ErrChapterNotFound):
		statusCode = http.StatusNotFound
		errResp = APIError{Message: "Chapter not found"}
	case errors.Is(err, models.ErrAssetMissing):
		statusCode = http.StatusNotFound
		errResp = APIError{Message: "Asset not found"}
	case errors.Is(err, models.ErrContentNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = APIError{Message: "Content not found"}
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrBadRequest),
		errors.Is(err, service.ErrNoChaptersSubmitted):
		statusCode = http.StatusBadRequest
		errResp = APIError{Message: err.Error()}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = APIError{Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
