package schemas

import (
	"context"
	"time"
)

// -- Collaborator Contracts --
// The orchestration core depends on these interfaces only. The chromedp
// implementation lives in internal/browser; mocks live in internal/mocks.

// SessionOptions binds one network identity and one browser identity to a
// session for its whole lifetime.
type SessionOptions struct {
	// ProxyAddress in host:port form. Empty means direct egress.
	ProxyAddress string

	// Fingerprint to emulate. Required.
	Fingerprint *FingerprintProfile

	// InitScript is the anti-fingerprinting payload injected before any
	// document script runs. Opaque to the driver.
	InitScript string
}

// BrowserDriver creates isolated browser sessions against a shared browser
// process. NewSession must be safe to call concurrently.
type BrowserDriver interface {
	NewSession(ctx context.Context, opts SessionOptions) (Page, error)
	Shutdown(ctx context.Context) error
}

// Box is an element's bounding rectangle in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Page is one isolated browser context plus its single page. Every method
// may fail with a DriverError; callers treat those as retryable. Close is
// idempotent and must release the underlying context.
type Page interface {
	SessionID() string

	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// Query reports whether the selector matches at least one element.
	Query(ctx context.Context, selector string) (bool, error)
	// BoundingBox returns nil when the selector matches nothing visible.
	BoundingBox(ctx context.Context, selector string) (*Box, error)
	// Evaluate runs script in page context, unmarshalling the result into out
	// when out is non-nil.
	Evaluate(ctx context.Context, script string, out interface{}) error

	MouseMove(ctx context.Context, x, y float64) error
	Click(ctx context.Context, x, y float64) error
	PressKey(ctx context.Context, key string) error
	ScrollBy(ctx context.Context, dx, dy int) error

	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	ClearCookies(ctx context.Context) error

	Close() error
}

// CaptchaSolver delegates a captcha to an external solving capability.
// A false result is an expected negative outcome, not an error.
type CaptchaSolver interface {
	Solve(ctx context.Context, page Page, timeout time.Duration) (bool, error)
}

// PayloadGenerator produces the per-session anti-fingerprinting script.
// The core only injects the returned string; its content is opaque.
type PayloadGenerator interface {
	InitScript(profile *FingerprintProfile) (string, error)
}
