// Package middleware holds the HTTP middleware stack: JWT authentication and
// request logging.
package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"schemacanvas-backend/pkg/auth"
)

// Authenticator validates bearer tokens and places the user in the request
// context.
type Authenticator struct {
	validator *auth.JWTValidator
	logger    *zap.Logger
}

// NewAuthenticator creates the JWT authentication middleware.
func NewAuthenticator(validator *auth.JWTValidator, logger *zap.Logger) *Authenticator {
	return &Authenticator{validator: validator, logger: logger}
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := a.validator.ValidateToken(token)
		if err != nil {
			a.logger.Debug("token validation failed", zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Roles:  claims.Roles,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
