package models

import "github.com/golang-jwt/jwt/v5"

// ServiceClaims представляет claims межсервисного JWT.
// Subject содержит идентификатор сервиса-источника (например, "translation-worker").
type ServiceClaims struct {
	jwt.RegisteredClaims
}

type contextKey string

// SourceServiceContextKey — ключ контекста gin, под которым middleware
// сохраняет идентификатор сервиса-источника из межсервисного токена.
const SourceServiceContextKey contextKey = "sourceService"
