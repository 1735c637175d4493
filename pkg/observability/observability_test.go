package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsInert(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	// None of these may panic on a disabled provider.
	ctx, span := p.StartSpan(context.Background(), "noop")
	span.End()
	p.RecordRequest(ctx)
	p.RecordError(ctx, errors.New("x"))
	p.RecordDuration(ctx, 0)

	ctx, done := p.TrackCallback(ctx)
	done(errors.New("x"))
	_ = ctx

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "fhegate", c.ServiceName)
	assert.True(t, c.Enabled)
	assert.Equal(t, 1.0, c.SampleRate)
}

func TestMiddlewarePassesThrough(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
