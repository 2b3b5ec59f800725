package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/internal/config"
	"github.com/Nasapan23/undetected-scrape-api/internal/mocks"
)

func solverFor(t *testing.T, handler http.HandlerFunc) *Solver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSolver(config.CaptchaConfig{
		Enabled:  true,
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	}, zap.NewNop())
}

func solvablePage() *mocks.MockPage {
	page := new(mocks.MockPage)
	page.On("URL", mock.Anything).Return("https://target.example.com/login", nil)
	page.On("Evaluate", mock.Anything, siteKeyScript, mock.Anything).
		Run(func(args mock.Arguments) {
			if out, ok := args.Get(2).(*string); ok {
				*out = "0x4AAAAAAA"
			}
		}).Return(nil)
	return page
}

func TestSolve(t *testing.T) {
	t.Run("token received and injected", func(t *testing.T) {
		var received solveRequest
		s := solverFor(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			json.NewEncoder(w).Encode(solveResponse{Token: "tok-123"})
		})

		page := solvablePage()
		var injected string
		page.On("Evaluate", mock.Anything, mock.MatchedBy(func(script string) bool {
			return script != siteKeyScript
		}), mock.Anything).
			Run(func(args mock.Arguments) { injected = args.String(1) }).
			Return(nil)

		solved, err := s.Solve(context.Background(), page, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, solved)
		assert.Equal(t, "test-key", received.APIKey)
		assert.Equal(t, "0x4AAAAAAA", received.SiteKey)
		assert.Contains(t, injected, "tok-123")
	})

	t.Run("empty token is a clean negative", func(t *testing.T) {
		s := solverFor(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(solveResponse{})
		})

		solved, err := s.Solve(context.Background(), solvablePage(), 5*time.Second)
		require.NoError(t, err)
		assert.False(t, solved)
	})

	t.Run("service error surfaces", func(t *testing.T) {
		s := solverFor(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		solved, err := s.Solve(context.Background(), solvablePage(), 5*time.Second)
		require.Error(t, err)
		assert.False(t, solved)
	})

	t.Run("solver-reported error surfaces", func(t *testing.T) {
		s := solverFor(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(solveResponse{Error: "no workers available"})
		})

		solved, err := s.Solve(context.Background(), solvablePage(), 5*time.Second)
		require.Error(t, err)
		assert.False(t, solved)
		assert.Contains(t, err.Error(), "no workers available")
	})
}
