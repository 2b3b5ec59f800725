package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
	"github.com/Nasapan23/undetected-scrape-api/internal/identity"
)

// stubScraper lets tests script the orchestration outcome.
type stubScraper struct {
	mu      sync.Mutex
	fn      func(ctx context.Context, req schemas.ScrapeRequest) (*schemas.ScrapeResult, error)
	lastReq schemas.ScrapeRequest
}

func (s *stubScraper) Scrape(ctx context.Context, req schemas.ScrapeRequest) (*schemas.ScrapeResult, error) {
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()
	return s.fn(ctx, req)
}

func newTestServer(t *testing.T, scrape *stubScraper, maxConcurrent int) *Server {
	t.Helper()
	store, err := identity.NewStore(config.IdentityConfig{ProfilesDir: t.TempDir(), Seed: 1}, zap.NewNop())
	require.NoError(t, err)
	return New(config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		MaxConcurrent:   maxConcurrent,
		ShutdownTimeout: time.Second,
	}, scrape, store, zap.NewNop())
}

func okScraper(result *schemas.ScrapeResult) *stubScraper {
	return &stubScraper{fn: func(context.Context, schemas.ScrapeRequest) (*schemas.ScrapeResult, error) {
		return result, nil
	}}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, okScraper(nil), 1)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestScrapeGetMapsQueryParams(t *testing.T) {
	stub := okScraper(&schemas.ScrapeResult{Status: schemas.StatusSuccess, AttemptsMade: 1})
	srv := newTestServer(t, stub, 1)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/scrape?url=https://target.example.com/&max_retries=3&extract_html=true&browser_type=firefox", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://target.example.com/", stub.lastReq.URL)
	assert.Equal(t, 3, stub.lastReq.MaxRetries)
	assert.True(t, stub.lastReq.ExtractHTML)
	assert.Equal(t, "firefox", stub.lastReq.BrowserType)

	var result schemas.ScrapeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, schemas.StatusSuccess, result.Status)
}

func TestScrapePostBody(t *testing.T) {
	stub := okScraper(&schemas.ScrapeResult{Status: schemas.StatusSuccess})
	srv := newTestServer(t, stub, 1)

	body := `{"url": "https://target.example.com/", "wait_time_ms": 1500}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1500, stub.lastReq.WaitTimeMs)
}

func TestScrapeErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation error", &schemas.ValidationError{Field: "url", Reason: "url is required"}, http.StatusBadRequest},
		{"unknown profile", schemas.ErrProfileNotFound, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubScraper{fn: func(context.Context, schemas.ScrapeRequest) (*schemas.ScrapeResult, error) {
				return nil, tc.err
			}}
			srv := newTestServer(t, stub, 1)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape?url=x", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestScrapeConcurrencyBound(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	stub := &stubScraper{fn: func(ctx context.Context, _ schemas.ScrapeRequest) (*schemas.ScrapeResult, error) {
		started <- struct{}{}
		<-release
		return &schemas.ScrapeResult{Status: schemas.StatusSuccess}, nil
	}}
	srv := newTestServer(t, stub, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape?url=https://a.example.com/", nil))
	}()
	<-started

	// Second request finds the single slot taken.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scrape?url=https://b.example.com/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(release)
	wg.Wait()
}

func TestProfileLifecycle(t *testing.T) {
	srv := newTestServer(t, okScraper(nil), 1)

	// Create.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/profiles",
		strings.NewReader(`{"browser_type": "chrome", "os_type": "linux"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created schemas.FingerprintProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "chrome", created.Browser.Type)
	assert.Equal(t, "linux", created.OS.Type)

	// List.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Profiles []schemas.ProfileSummary `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Profiles, 1)
	assert.Equal(t, created.ID, listing.Profiles[0].ID)

	// Get.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Delete.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/profiles/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Gone.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProfileValidation(t *testing.T) {
	srv := newTestServer(t, okScraper(nil), 1)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/profiles",
		strings.NewReader(`{"browser_type": "netscape"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("empty body is unconstrained", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/profiles", nil))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}
