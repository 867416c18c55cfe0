package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"

	correlationHeader = "X-Correlation-ID"
)

// CorrelationID echoes the caller's X-Correlation-ID or mints a new one, and
// stores it on the request context for log lines further down.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationIDKey, id)))
	})
}

func GetCorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// Logger returns base annotated with the request's correlation and owner ids.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 2)
	if id := GetCorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if owner := GetOwnerID(ctx); owner != "" {
		fields = append(fields, zap.String("owner_id", owner))
	}
	return base.With(fields...)
}
