package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hase-lab/accountd/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
	status int
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("ok"))
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"bearer", "Bearer abc-123", "abc-123"},
		{"lower-case scheme", "bearer abc", "abc"},
		{"extra spaces", "  Bearer   abc  ", "abc"},
		{"basic auth", "Basic dXNlcjpwdw==", ""},
		{"scheme only", "Bearer", ""},
		{"blank token", "Bearer    ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			BearerToken(dummy).ServeHTTP(rec, req)

			if !dummy.called {
				t.Fatal("expected next handler to be called")
			}
			if got := TokenFromContext(dummy.ctx); got != tc.want {
				t.Errorf("TokenFromContext = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTokenFromContext_Empty(t *testing.T) {
	if got := TokenFromContext(context.Background()); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
}

func TestWithRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(WithRequestLogging(zap.New(core)))
	r.Method(http.MethodPost, "/api/users", &dummyHandler{status: http.StatusCreated})
	r.Method(http.MethodGet, "/boom", &dummyHandler{status: http.StatusInternalServerError})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/users", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "POST", first["method"])
	assert.Equal(t, "/api/users", first["path"])
	assert.EqualValues(t, http.StatusCreated, first["status"])
	assert.EqualValues(t, 2, first["size"])
	assert.NotEmpty(t, first["request_id"])

	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestWithMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(WithMetrics)
	r.Method(http.MethodPut, "/api/users/{id}", &dummyHandler{status: http.StatusNoContent})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPut, "/api/users/{id}", "204")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/users/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/users/8", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestWithMetrics_Unmatched(t *testing.T) {
	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(counter)

	h := WithMetrics(http.NotFoundHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestWithTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := WithTracing(&dummyHandler{status: http.StatusUnauthorized})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "http_request", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), rec.Header().Get("X-Trace-ID"))
}
