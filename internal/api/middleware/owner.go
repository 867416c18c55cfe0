package middleware

import (
	"context"
	"net/http"
	"strings"
)

const ownerIDKey contextKey = "owner_id"

// OwnerID reads the caller's user id from the X-User-ID header set by the
// upstream auth proxy. Requests without it are rejected with 401.
func OwnerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if id == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing X-User-ID header"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, id)))
	})
}

// GetOwnerID returns the owner stored by OwnerID, or "" outside it.
func GetOwnerID(ctx context.Context) string {
	v, _ := ctx.Value(ownerIDKey).(string)
	return v
}
