package schemas

import (
	"fmt"
	"net/url"
	"time"
)

// -- Request / Response Models --
// These types define the contract between the HTTP service layer and the
// scrape orchestration core.

// ScrapeRequest describes a single scrape job as submitted by a caller.
type ScrapeRequest struct {
	URL         string `json:"url"`
	WaitTimeMs  int    `json:"wait_time_ms,omitempty"`
	MaxRetries  int    `json:"max_retries,omitempty"`
	ExtractHTML bool   `json:"extract_html,omitempty"`

	// Fingerprint constraints. ProfileID wins when set and known.
	ProfileID   string `json:"profile_id,omitempty"`
	BrowserType string `json:"browser_type,omitempty"`
	OSType      string `json:"os_type,omitempty"`
	DeviceType  string `json:"device_type,omitempty"`
}

// Validate checks the request for problems that no amount of retrying can fix.
func (r *ScrapeRequest) Validate() error {
	if r.URL == "" {
		return &ValidationError{Field: "url", Reason: "url is required"}
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("invalid url format: %q", r.URL)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("unsupported scheme: %q", u.Scheme)}
	}
	if r.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "max_retries must not be negative"}
	}
	return nil
}

// Status is the terminal outcome of a scrape job.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusFailure        Status = "failure"
)

// ScrapeData holds the content extracted from a page.
type ScrapeData struct {
	Title string   `json:"title"`
	Text  string   `json:"text"`
	Links []string `json:"links"`
	HTML  string   `json:"html,omitempty"`
}

// Empty reports whether the extraction produced no usable content.
func (d *ScrapeData) Empty() bool {
	return d == nil || (d.Title == "" && d.Text == "" && len(d.Links) == 0)
}

// Diagnostic records how the scrape went for callers that care about the
// adversarial state encountered along the way.
type Diagnostic struct {
	LastVerdict  ChallengeVerdict `json:"last_verdict"`
	BypassEvents int              `json:"bypass_events"`
	Notes        []string         `json:"notes,omitempty"`
}

// ScrapeResult is what every caller receives, regardless of outcome.
type ScrapeResult struct {
	Status          Status      `json:"status"`
	Data            *ScrapeData `json:"data,omitempty"`
	Cookies         []Cookie    `json:"cookies,omitempty"`
	FingerprintUsed string      `json:"fingerprint_used,omitempty"`
	Diagnostic      Diagnostic  `json:"diagnostic"`
	AttemptsMade    int         `json:"attempts_made"`
	Error           string      `json:"error,omitempty"`
}

// Cookie is a driver-agnostic representation of a browser cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}
