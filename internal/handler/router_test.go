package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifecraft/profiler/backend/internal/config"
	"github.com/lifecraft/profiler/backend/internal/model/module"
	"github.com/lifecraft/profiler/backend/internal/service/ai"
	"github.com/lifecraft/profiler/backend/internal/service/ai/aitest"
	"github.com/lifecraft/profiler/backend/internal/service/extraction"
	"github.com/lifecraft/profiler/backend/internal/service/profiling"
	"github.com/lifecraft/profiler/backend/internal/service/suggest"
	"github.com/lifecraft/profiler/backend/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	modules := module.NewMemoryStore(module.Seed())
	gen := ai.NewService(aitest.NewModel(), config.AIConfig{}, nil)
	engine := profiling.NewEngine(modules, store.NewMemoryStore(), gen,
		extraction.NewService(gen, extraction.Config{}, nil),
		profiling.Config{GenerationTimeout: time.Second, PersistTimeout: time.Second}, nil)
	return NewRouter(modules, engine, suggest.NewService(gen, modules, time.Second, nil), nil)
}

func TestRouterServesRoutes(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/modules", "", http.StatusOK},
		{http.MethodPost, "/api/suggest", `{"module":"vision"}`, http.StatusOK},
		{http.MethodGet, "/api/sessions/missing", "", http.StatusNotFound},
		{http.MethodOptions, "/api/stream", "", http.StatusNoContent},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRouterStreamsFallbackTurn(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stream", strings.NewReader(`{"sessionId":"r1","module":"strengths","message":"__INIT__"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"type":"metadata"`)
	assert.Contains(t, body, `"type":"complete"`)
	assert.Contains(t, body, `"source":"fallback"`)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
