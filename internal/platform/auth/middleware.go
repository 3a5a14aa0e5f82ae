package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aurumcraft/api/internal/platform/httpx"
	"github.com/aurumcraft/api/internal/platform/requestctx"
)

type contextKey string

const claimsContextKey contextKey = "github.com/aurumcraft/api/internal/platform/auth/claims"

// ClaimsFromContext returns the verified service identity stored by RequireServiceToken.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// RequireServiceToken rejects requests without a valid OIDC bearer token.
// Verified claims are stored on the request context.
func RequireServiceToken(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "missing bearer token", http.StatusUnauthorized))
				return
			}

			claims, err := verifier.Verify(ctx, raw)
			if err != nil {
				requestctx.Logger(ctx).Warn("service token rejected", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "invalid service token", http.StatusUnauthorized))
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
