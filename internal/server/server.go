package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
	"github.com/Nasapan23/undetected-scrape-api/internal/identity"
	"github.com/Nasapan23/undetected-scrape-api/internal/scraper"
)

// Scraper is the orchestration entrypoint the server drives.
type Scraper interface {
	Scrape(ctx context.Context, req schemas.ScrapeRequest) (*schemas.ScrapeResult, error)
}

var _ Scraper = (*scraper.Orchestrator)(nil)

// Server exposes the scrape orchestrator and the identity store over HTTP.
// Scrape work is bounded by a semaphore so a burst of requests cannot spawn
// an unbounded number of browser sessions.
type Server struct {
	cfg        config.ServerConfig
	orch       Scraper
	identities *identity.Store
	log        *zap.Logger
	router     *mux.Router
	slots      chan struct{}
	httpSrv    *http.Server
}

func New(cfg config.ServerConfig, orch Scraper, identities *identity.Store, logger *zap.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		orch:       orch,
		identities: identities,
		log:        logger.Named("server"),
		router:     mux.NewRouter(),
		slots:      make(chan struct{}, cfg.MaxConcurrent),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/profiles", s.handleListProfiles).Methods(http.MethodGet)
	s.router.HandleFunc("/profiles", s.handleCreateProfile).Methods(http.MethodPost)
	s.router.HandleFunc("/profiles/{id}", s.handleGetProfile).Methods(http.MethodGet)
	s.router.HandleFunc("/profiles/{id}", s.handleDeleteProfile).Methods(http.MethodDelete)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains with the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("HTTP server draining")
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scrapeRequestFromQuery maps GET query parameters onto a ScrapeRequest, for
// callers that cannot send a body.
func scrapeRequestFromQuery(r *http.Request) schemas.ScrapeRequest {
	q := r.URL.Query()
	req := schemas.ScrapeRequest{
		URL:         q.Get("url"),
		ProfileID:   q.Get("profile_id"),
		BrowserType: q.Get("browser_type"),
		OSType:      q.Get("os_type"),
		DeviceType:  q.Get("device_type"),
	}
	if v, err := strconv.Atoi(q.Get("wait_time_ms")); err == nil {
		req.WaitTimeMs = v
	}
	if v, err := strconv.Atoi(q.Get("max_retries")); err == nil {
		req.MaxRetries = v
	}
	if v, err := strconv.ParseBool(q.Get("extract_html")); err == nil {
		req.ExtractHTML = v
	}
	return req
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req schemas.ScrapeRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	} else {
		req = scrapeRequestFromQuery(r)
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-r.Context().Done():
		return
	default:
		writeError(w, http.StatusServiceUnavailable, "scrape capacity exhausted, retry later")
		return
	}

	result, err := s.orch.Scrape(r.Context(), req)
	if err != nil {
		switch {
		case schemas.IsValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, schemas.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.log.Error("Scrape failed unexpectedly", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type createProfileRequest struct {
	BrowserType string `json:"browser_type"`
	OSType      string `json:"os_type"`
	DeviceType  string `json:"device_type"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	// An empty body means an unconstrained profile.
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	profile, err := s.identities.GetOrCreate(r.Context(), "", req.BrowserType, req.OSType, req.DeviceType)
	if err != nil {
		if schemas.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("Profile creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.identities.List(r.Context())
	if err != nil {
		s.log.Error("Profile listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": summaries})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	profile, err := s.identities.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, schemas.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("Profile lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.identities.Delete(r.Context(), id); err != nil {
		if errors.Is(err, schemas.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error("Profile deletion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
