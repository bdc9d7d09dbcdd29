package middleware

import (
	"context"
	"errors"
	"net/http"
	"translation-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenVerifier абстрагирует проверку межсервисного токена (реализация — authutils.JWTVerifier).
type TokenVerifier interface {
	VerifyInterServiceToken(ctx context.Context, tokenString string) (*models.ServiceClaims, error)
}

// InterServiceAuthMiddleware создает Gin middleware для проверки межсервисного JWT.
// Применяется к группе /internal — прогресс переводов и триггеры синхронизации
// принимаются только от доверенных сервисов (воркеры перевода, пайплайн инжеста).
func InterServiceAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		tokenString := c.Request.Header.Get("X-Internal-Service-Token")
		if tokenString == "" {
			log.Warn("X-Internal-Service-Token header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: Missing inter-service token"})
			return
		}

		claims, err := verifier.VerifyInterServiceToken(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "Unauthorized: Invalid inter-service token"
			if errors.Is(err, models.ErrTokenExpired) {
				msg = "Unauthorized: Inter-service token expired"
			} else if errors.Is(err, models.ErrTokenMalformed) || errors.Is(err, models.ErrTokenInvalid) {
				// Используем общее сообщение
			} else {
				log.Error("Unexpected inter-service token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "Internal server error during inter-service token verification"
			}
			log.Warn("Inter-service token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(status, gin.H{"message": msg})
			return
		}

		// Добавляем ID сервиса-источника в контекст запроса.
		c.Set(string(models.SourceServiceContextKey), claims.Subject)
		log.Debug("Inter-service request authorized", zap.String("sourceService", claims.Subject))

		c.Next()
	}
}
