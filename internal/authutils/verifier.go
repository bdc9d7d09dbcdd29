package authutils

import (
	"context"
	"errors"
	"fmt"
	"translation-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTVerifier проверяет межсервисные JWT токены.
type JWTVerifier struct {
	jwtSecret string
	logger    *zap.Logger
}

// NewJWTVerifier создает новый экземпляр JWTVerifier.
// Принимает секрет и опционально логгер. Если логгер nil, используется Noop.
func NewJWTVerifier(jwtSecret string, logger *zap.Logger) (*JWTVerifier, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTVerifier{
		jwtSecret: jwtSecret,
		logger:    logger.Named("JWTVerifier"),
	}, nil
}

// VerifyInterServiceToken проверяет подпись JWT, его валидность и извлекает claims.
func (v *JWTVerifier) VerifyInterServiceToken(ctx context.Context, tokenString string) (*models.ServiceClaims, error) {
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))
	claims := &models.ServiceClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Проверяем метод подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Warn("Unexpected signing method", zap.Any("alg", token.Header["alg"]))
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.jwtSecret), nil
	})

	if err != nil {
		log.Warn("Failed to parse or verify token", zap.Error(err))
		// Используем errors.Is для точной проверки и возвращаем ошибки из models
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		} else if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, models.ErrTokenMalformed
		} else if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, models.ErrTokenInvalid // Невалидная подпись = невалидный токен
		}
		// Для других ошибок парсинга считаем токен невалидным, оборачивая исходную ошибку
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if !token.Valid {
		log.Warn("Token is invalid despite no parsing error")
		return nil, models.ErrTokenInvalid
	}

	if claims.Subject == "" {
		log.Warn("Inter-service token missing Subject (source service)")
		return nil, fmt.Errorf("%w: subject missing", models.ErrTokenInvalid)
	}

	log.Debug("Inter-service token verified successfully", zap.String("sourceService", claims.Subject))
	return claims, nil
}

// tokenSnippet возвращает безопасную для логгирования часть токена.
func tokenSnippet(token string) string {
	if len(token) > 15 {
		return token[:15] + "..."
	}
	return token
}
