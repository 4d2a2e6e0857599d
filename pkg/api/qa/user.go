package qa

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

type userKey struct{}

// RequireUser rejects requests without a positive numeric X-User-ID and stores
// the id in the request context.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(UserHeader)), 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// WithUserID returns ctx carrying id.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// UserID returns the id stored by RequireUser, or 0.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userKey{}).(int64)
	return id
}
