package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/bypass"
	"github.com/Nasapan23/undetected-scrape-api/internal/challenge"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
	"github.com/Nasapan23/undetected-scrape-api/internal/humanoid"
	"github.com/Nasapan23/undetected-scrape-api/internal/identity"
	"github.com/Nasapan23/undetected-scrape-api/internal/proxy"
)

// behaviorBudget caps how long ambient humanoid activity may hold up an
// attempt.
const behaviorBudget = 3 * time.Second

// maxAttemptsCeiling is the hard upper bound on retries no request can
// exceed.
const maxAttemptsCeiling = 5

// ProxyPool is the slice of the proxy pool the orchestrator needs. A nil
// pool means direct egress.
type ProxyPool interface {
	Acquire() (string, error)
	MarkBad(address string)
}

var _ ProxyPool = (*proxy.Pool)(nil)

// Orchestrator runs the scrape state machine: acquire identity, open a
// session, navigate, act human, classify, bypass, extract, and retry with a
// fresh identity when the session is burned.
type Orchestrator struct {
	driver     schemas.BrowserDriver
	identities *identity.Store
	pool       ProxyPool
	classifier *challenge.Classifier
	dispatcher *bypass.Dispatcher
	sim        *humanoid.Simulator
	payloads   schemas.PayloadGenerator
	cfg        config.Config
	log        *zap.Logger
	rng        *rand.Rand

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the orchestrator. pool may be nil.
func NewOrchestrator(
	driver schemas.BrowserDriver,
	identities *identity.Store,
	pool ProxyPool,
	classifier *challenge.Classifier,
	dispatcher *bypass.Dispatcher,
	sim *humanoid.Simulator,
	payloads schemas.PayloadGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		driver:     driver,
		identities: identities,
		pool:       pool,
		classifier: classifier,
		dispatcher: dispatcher,
		sim:        sim,
		payloads:   payloads,
		cfg:        cfg,
		log:        logger.Named("scraper"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      sleepContext,
	}
}

// attemptState accumulates what a scrape has learned across attempts.
type attemptState struct {
	bestData    *schemas.ScrapeData
	bestCookies []schemas.Cookie
	bestProfile string
	lastVerdict schemas.ChallengeVerdict
	events      int
	notes       []string
}

func (s *attemptState) note(format string, args ...interface{}) {
	s.notes = append(s.notes, fmt.Sprintf(format, args...))
}

// Scrape executes a scrape request end to end. The returned error is non-nil
// only for request problems no retry can fix (validation failures, unknown
// profile ids); adversarial outcomes are reported through the result.
func (o *Orchestrator) Scrape(ctx context.Context, req schemas.ScrapeRequest) (*schemas.ScrapeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	attempts := req.MaxRetries
	if attempts == 0 {
		attempts = o.cfg.Scraper.MaxAttempts
	}
	if attempts < 1 {
		attempts = 1
	}
	if attempts > maxAttemptsCeiling {
		attempts = maxAttemptsCeiling
	}

	log := o.log.With(zap.String("url", req.URL))
	log.Info("Scrape started", zap.Int("max_attempts", attempts))

	state := &attemptState{lastVerdict: schemas.VerdictUnknown}
	jar := newCookieJar(o.cfg.Scraper, o.rng, o.log)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(float64(attempt)*(2+o.rng.Float64()*3)) * time.Second
			log.Debug("Backing off before retry", zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			if err := o.sleep(ctx, backoff); err != nil {
				state.note("cancelled during backoff: %v", err)
				return o.finish(state, attempt-1, log), nil
			}
		}

		done, result, err := o.runAttempt(ctx, req, attempt, state, jar, log)
		if err != nil {
			return nil, err
		}
		if done {
			return o.finishSuccess(result, state, attempt, log), nil
		}
		if ctx.Err() != nil {
			state.note("context ended: %v", ctx.Err())
			return o.finish(state, attempt, log), nil
		}
	}

	return o.finish(state, attempts, log), nil
}

// runAttempt performs one full session-scoped attempt. It returns done=true
// with the extracted data on success; a non-nil error aborts the whole
// scrape (terminal request problems only).
func (o *Orchestrator) runAttempt(ctx context.Context, req schemas.ScrapeRequest, attempt int, state *attemptState, jar *cookieJar, log *zap.Logger) (bool, *schemas.ScrapeData, error) {
	log = log.With(zap.Int("attempt", attempt))

	profile, err := o.identities.GetOrCreate(ctx, req.ProfileID, req.BrowserType, req.OSType, req.DeviceType)
	if err != nil {
		if errors.Is(err, schemas.ErrProfileNotFound) || schemas.IsValidationError(err) {
			return false, nil, err
		}
		state.note("attempt %d: identity store: %v", attempt, err)
		return false, nil, nil
	}
	state.bestProfile = profile.ID

	var proxyAddr string
	if o.pool != nil {
		proxyAddr, err = o.pool.Acquire()
		if err != nil {
			// Degraded mode: the scrape goes out over direct egress rather
			// than dying with zero navigations.
			state.note("attempt %d: proxy pool: %v, continuing without proxy", attempt, err)
			log.Warn("No proxy available, continuing without proxy", zap.Error(err))
			proxyAddr = ""
		}
	}

	initScript, err := o.payloads.InitScript(profile)
	if err != nil {
		state.note("attempt %d: payload generation: %v", attempt, err)
		log.Error("Init script generation failed", zap.Error(err))
		return false, nil, nil
	}

	page, err := o.driver.NewSession(ctx, schemas.SessionOptions{
		ProxyAddress: proxyAddr,
		Fingerprint:  profile,
		InitScript:   initScript,
	})
	if err != nil {
		o.markProxy(proxyAddr)
		state.note("attempt %d: session creation: %v", attempt, err)
		log.Warn("Session creation failed", zap.Error(err))
		return false, nil, nil
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("Session close failed", zap.Error(err))
		}
	}()

	if seed := jar.forNextSession(); len(seed) > 0 {
		if err := page.SetCookies(ctx, seed); err != nil {
			log.Debug("Cookie seeding failed", zap.Error(err))
		}
	}

	if err := page.Goto(ctx, req.URL, o.cfg.Browser.NavigationTimeout); err != nil {
		// Bans are permanent, so only blame the proxy for failures at the
		// connection layer; an origin timeout is not the exit node's fault.
		if isConnectionError(err) {
			o.markProxy(proxyAddr)
		}
		state.note("attempt %d: navigation: %v", attempt, err)
		log.Warn("Navigation failed", zap.Error(err))
		return false, nil, nil
	}

	settle := time.Duration(req.WaitTimeMs) * time.Millisecond
	if settle <= 0 {
		settle = time.Duration((2 + o.rng.Float64()*3) * float64(time.Second))
	}
	if err := o.sleep(ctx, settle); err != nil {
		return false, nil, nil
	}

	o.sim.Act(ctx, page, behaviorBudget)

	verdict := o.classifier.Classify(ctx, challenge.SnapshotPage(ctx, page))
	state.lastVerdict = verdict

	if verdict.IsChallenge() {
		verdict = o.runBypass(ctx, page, verdict, attempt, state, log)
		state.lastVerdict = verdict
	}

	if verdict.IsChallenge() {
		// Session is burned; salvage whatever content is visible before
		// retiring it.
		o.salvage(ctx, page, req.ExtractHTML, state)
		state.note("attempt %d: unresolved verdict %s", attempt, verdict)
		return false, nil, nil
	}

	data, err := extract(ctx, page, req.ExtractHTML)
	if err != nil {
		state.note("attempt %d: extraction: %v", attempt, err)
		log.Warn("Extraction failed", zap.Error(err))
		return false, nil, nil
	}

	if cookies, err := page.Cookies(ctx); err == nil {
		jar.remember(cookies)
		state.bestCookies = cookies
	}

	// A page that classified clean but has almost no text is a soft block:
	// the battle looked won but the content never arrived.
	if len(data.Text) < o.cfg.Scraper.MinContentLength {
		state.keepIfBetter(data)
		state.note("attempt %d: soft block, %d chars of text", attempt, len(data.Text))
		log.Info("Soft block detected", zap.Int("text_length", len(data.Text)))
		return false, nil, nil
	}

	return true, data, nil
}

// runBypass drives in-place bypass sub-attempts. Only Cloudflare verdicts
// warrant retrying against the same session; everything else gets a single
// shot and then a fresh identity.
func (o *Orchestrator) runBypass(ctx context.Context, page schemas.Page, verdict schemas.ChallengeVerdict, attempt int, state *attemptState, log *zap.Logger) schemas.ChallengeVerdict {
	subAttempts := o.cfg.Scraper.BypassSubAttempts
	if subAttempts < 1 || !verdict.IsCloudflare() {
		subAttempts = 1
	}

	for sub := 1; sub <= subAttempts; sub++ {
		outcome, err := o.dispatcher.Attempt(ctx, page, verdict)
		state.events++
		state.notes = append(state.notes, outcome.Notes...)
		if err != nil {
			state.note("attempt %d: bypass %d/%d driver failure: %v", attempt, sub, subAttempts, err)
			log.Warn("Bypass aborted by driver failure", zap.Error(err))
			return verdict
		}
		if outcome.Solved {
			log.Info("Challenge bypassed",
				zap.String("verdict", string(verdict)),
				zap.Int("sub_attempt", sub))
			return outcome.FinalVerdict
		}
		verdict = outcome.FinalVerdict
		if !verdict.IsChallenge() || !verdict.IsCloudflare() {
			break
		}
		if sub < subAttempts {
			pause := time.Duration(5000+o.rng.Intn(5001)) * time.Millisecond
			if o.sleep(ctx, pause) != nil {
				break
			}
		}
	}
	return verdict
}

// salvage keeps partially readable content from a burned session so a scrape
// that never fully succeeds can still return something.
func (o *Orchestrator) salvage(ctx context.Context, page schemas.Page, includeHTML bool, state *attemptState) {
	data, err := extract(ctx, page, includeHTML)
	if err != nil || data.Empty() {
		return
	}
	state.keepIfBetter(data)
}

func (s *attemptState) keepIfBetter(data *schemas.ScrapeData) {
	if s.bestData == nil || len(data.Text) > len(s.bestData.Text) {
		s.bestData = data
	}
}

func (o *Orchestrator) markProxy(address string) {
	if o.pool != nil && address != "" {
		o.pool.MarkBad(address)
	}
}

// connectionErrorMarkers are the Chromium network error codes that indict
// the egress path itself rather than the origin.
var connectionErrorMarkers = []string{
	"ERR_PROXY",
	"ERR_TUNNEL",
	"ERR_CONNECTION",
	"ERR_SOCKS",
	"ERR_NAME_NOT_RESOLVED",
	"ERR_ADDRESS_UNREACHABLE",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range connectionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) finishSuccess(data *schemas.ScrapeData, state *attemptState, attempts int, log *zap.Logger) *schemas.ScrapeResult {
	log.Info("Scrape succeeded", zap.Int("attempts", attempts), zap.Int("bypass_events", state.events))
	return &schemas.ScrapeResult{
		Status:          schemas.StatusSuccess,
		Data:            data,
		Cookies:         state.bestCookies,
		FingerprintUsed: state.bestProfile,
		AttemptsMade:    attempts,
		Diagnostic: schemas.Diagnostic{
			LastVerdict:  state.lastVerdict,
			BypassEvents: state.events,
			Notes:        state.notes,
		},
	}
}

// finish builds the terminal result when no attempt fully succeeded:
// partial success when anything readable was recovered, failure otherwise.
func (o *Orchestrator) finish(state *attemptState, attempts int, log *zap.Logger) *schemas.ScrapeResult {
	result := &schemas.ScrapeResult{
		Cookies:         state.bestCookies,
		FingerprintUsed: state.bestProfile,
		AttemptsMade:    attempts,
		Diagnostic: schemas.Diagnostic{
			LastVerdict:  state.lastVerdict,
			BypassEvents: state.events,
			Notes:        state.notes,
		},
	}

	if state.bestData != nil && !state.bestData.Empty() {
		log.Info("Scrape partially succeeded", zap.Int("attempts", attempts))
		result.Status = schemas.StatusPartialSuccess
		result.Data = state.bestData
		return result
	}

	log.Warn("Scrape failed", zap.Int("attempts", attempts), zap.String("last_verdict", string(state.lastVerdict)))
	result.Status = schemas.StatusFailure
	result.Error = schemas.ErrNoDataRecovered.Error()
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
