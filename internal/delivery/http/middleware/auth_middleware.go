package middleware

import (
	"context"
	"net/http"

	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
	"shopfront-backend/pkg/utils"
)

// AuthMiddleware builds the principal from access token claims. Accounts are
// owned by the identity service, so no lookup happens here.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Token from header or cookie
		if utils.TokenFromRequest(r) == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
			return
		}

		// 2. Validate
		claims, err := utils.ExtractClaims(r)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		// 3. Principal and user-scoped logger into the context
		user := &domain.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
		l := logger.WithUserID(*logger.WithContext(r.Context()), user.ID)

		ctx := context.WithValue(r.Context(), domain.UserContextKey, user)
		ctx = logger.NewContext(ctx, &l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the principal set by AuthMiddleware.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(domain.UserContextKey).(*domain.User)
	return user, ok && user != nil
}
