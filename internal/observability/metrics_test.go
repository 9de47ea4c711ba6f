package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCountingWriter struct {
	http.ResponseWriter
	flushes int
}

func (w *flushCountingWriter) Flush() { w.flushes++ }

func TestMiddlewareKeepsWriterFlushable(t *testing.T) {
	m := NewMetrics()
	inner := &flushCountingWriter{ResponseWriter: httptest.NewRecorder()}

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "wrapped writer must stay flushable for streaming")
		flusher.Flush()
		flusher.Flush()
	}))
	handler.ServeHTTP(inner, httptest.NewRequest(http.MethodGet, "/v1/entities/search", nil))

	assert.Equal(t, 2, inner.flushes)
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	m := NewMetrics()
	rec := httptest.NewRecorder()

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
