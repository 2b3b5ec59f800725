package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
)

// siteKeyScript pulls the widget site key out of the page, whichever captcha
// vendor rendered it.
const siteKeyScript = `(() => {
	const el = document.querySelector('[data-sitekey]');
	return el ? el.getAttribute('data-sitekey') : '';
})()`

// tokenInjectionScript plants a solved token into the response fields the
// challenge form submits.
const tokenInjectionScript = `((token) => {
	for (const name of ['g-recaptcha-response', 'h-captcha-response', 'cf-turnstile-response']) {
		for (const el of document.getElementsByName(name)) {
			el.value = token;
		}
	}
	const form = document.querySelector('#challenge-form, form[action*="captcha"]');
	if (form) form.submit();
})(%q)`

// Solver delegates captcha solving to an external HTTP service. It is a
// best-effort capability: every failure mode short of a broken page maps to
// an unsolved result, never to a session-fatal error.
type Solver struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *zap.Logger
}

func NewSolver(cfg config.CaptchaConfig, logger *zap.Logger) *Solver {
	return &Solver{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      logger.Named("captcha"),
	}
}

type solveRequest struct {
	APIKey  string `json:"api_key"`
	PageURL string `json:"page_url"`
	SiteKey string `json:"site_key,omitempty"`
}

type solveResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// Solve implements schemas.CaptchaSolver.
func (s *Solver) Solve(ctx context.Context, page schemas.Page, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pageURL, err := page.URL(ctx)
	if err != nil {
		return false, fmt.Errorf("captcha: reading page url: %w", err)
	}

	var siteKey string
	if err := page.Evaluate(ctx, siteKeyScript, &siteKey); err != nil {
		s.log.Debug("Site key extraction failed", zap.Error(err))
	}

	token, err := s.requestToken(ctx, pageURL, siteKey)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	script := fmt.Sprintf(tokenInjectionScript, token)
	if err := page.Evaluate(ctx, script, nil); err != nil {
		return false, fmt.Errorf("captcha: injecting token: %w", err)
	}

	s.log.Info("Captcha token injected", zap.String("url", pageURL))
	return true, nil
}

func (s *Solver) requestToken(ctx context.Context, pageURL, siteKey string) (string, error) {
	body, err := json.Marshal(solveRequest{
		APIKey:  s.apiKey,
		PageURL: pageURL,
		SiteKey: siteKey,
	})
	if err != nil {
		return "", fmt.Errorf("captcha: encoding solve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("captcha: building solve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("captcha: calling solver service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("captcha: solver service returned %s", resp.Status)
	}

	var decoded solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("captcha: decoding solver response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("captcha: solver error: %s", decoded.Error)
	}
	return decoded.Token, nil
}
