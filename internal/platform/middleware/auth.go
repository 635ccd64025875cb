package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"attendance/pkg/requestcontext"
)

// AdminRole must be present in the token for ledger reads.
const AdminRole = "admin"

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	Role    string
	JTI     string
}

// RequireAdmin admits requests carrying a valid bearer token with the admin role.
func RequireAdmin(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusUnauthorized,
					`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusUnauthorized,
					`{"error":"unauthorized","error_description":"Invalid or expired token"}`)
				return
			}

			if claims.Role != AdminRole {
				logger.WarnContext(ctx, "forbidden - admin role required",
					"request_id", requestID,
					"subject", claims.Subject,
				)
				writeAuthError(w, logger, r, http.StatusForbidden,
					`{"error":"forbidden","error_description":"admin role required"}`)
				return
			}

			ctx = requestcontext.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		ctx := r.Context()
		logger.ErrorContext(ctx, "failed to write auth error response",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
	}
}
