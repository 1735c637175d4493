package observability

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware instruments every HTTP request with a span and RED metrics,
// attributed by route and status class.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		attrs := []attribute.KeyValue{
			attribute.String("http.route", r.URL.Path),
			attribute.String("http.method", r.Method),
		}

		ctx, span := p.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs = append(attrs, attribute.Int("http.status_code", rec.status))
		span.SetAttributes(attribute.Int("http.status_code", rec.status))

		p.RecordRequest(ctx, attrs...)
		p.RecordDuration(ctx, time.Since(start), attrs...)
		if rec.status >= 500 {
			p.RecordError(ctx, fmt.Errorf("http %d", rec.status), attrs...)
		}
	})
}
