package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mscno/forgegate/pkg/model"
)

type contextKey string

const accountContextKey contextKey = "account"

// AccountFromContext returns the authenticated account placed into the
// request context by WithAuth.
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*model.Account)
	return account, ok
}

// ContextWithAccount is exported for handler tests.
func ContextWithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// TokenVerifier validates a presented bearer token and returns its account.
type TokenVerifier func(ctx context.Context, token string) (*model.Account, error)

const (
	authCacheSize = 1024
	authCacheTTL  = 5 * time.Minute
)

// WithAuth validates the bearer token and resolves its account into the
// request context. Verification results are cached in an expiring LRU so the
// bcrypt comparison is not repeated on every request.
func WithAuth(verify TokenVerifier) func(http.Handler) http.Handler {
	cache := lru.NewLRU[string, *model.Account](authCacheSize, nil, authCacheTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}

			account, ok := cache.Get(token)
			if !ok {
				var err error
				account, err = verify(r.Context(), token)
				if err != nil {
					http.Error(w, "invalid access token", http.StatusUnauthorized)
					return
				}
				cache.Add(token, account)
			}

			ctx := ContextWithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearerToken pulls the token out of an Authorization header.
func ExtractBearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
