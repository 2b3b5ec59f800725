package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
)

// Driver implements schemas.BrowserDriver on top of chromedp. Because a
// Chrome proxy is a process-level flag, the driver keeps one ExecAllocator
// per proxy address and derives isolated contexts from it per session.
type Driver struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu         sync.Mutex
	allocators map[string]allocator
	sessions   map[string]*chromePage
	closed     bool
}

type allocator struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ schemas.BrowserDriver = (*Driver)(nil)

// NewDriver prepares the driver. Browser processes start lazily on the first
// session for each proxy address.
func NewDriver(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	rootCtx, rootCancel := context.WithCancel(ctx)
	d := &Driver{
		logger:     logger.Named("browser"),
		cfg:        cfg,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		allocators: make(map[string]allocator),
		sessions:   make(map[string]*chromePage),
	}
	d.logger.Info("Browser driver initialized", zap.Bool("headless", cfg.Headless))
	return d
}

func (d *Driver) allocatorOptions(proxyAddress string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if d.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	opts = append(opts,
		// Automation detection evasion at the process level.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		// Stability flags for containerized operation.
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", d.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", d.cfg.IgnoreTLSErrors),
	)

	for _, arg := range d.cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	if proxyAddress != "" {
		proxyURL := proxyAddress
		if u, err := url.Parse(proxyAddress); err != nil || u.Scheme == "" {
			proxyURL = "http://" + proxyAddress
		}
		opts = append(opts,
			chromedp.ProxyServer(proxyURL),
			// Upstream proxies terminate TLS with their own certificates.
			chromedp.Flag("ignore-certificate-errors", true),
		)
	}

	return opts
}

func (d *Driver) allocatorFor(proxyAddress string) (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, schemas.NewDriverError("allocator", fmt.Errorf("driver is shut down"))
	}
	if alloc, ok := d.allocators[proxyAddress]; ok {
		return alloc.ctx, nil
	}

	ctx, cancel := chromedp.NewExecAllocator(d.rootCtx, d.allocatorOptions(proxyAddress)...)
	d.allocators[proxyAddress] = allocator{ctx: ctx, cancel: cancel}
	d.logger.Debug("Started browser allocator", zap.Bool("proxied", proxyAddress != ""))
	return ctx, nil
}

// NewSession creates an isolated browser context carrying the session's
// fingerprint emulation and init script.
func (d *Driver) NewSession(ctx context.Context, opts schemas.SessionOptions) (schemas.Page, error) {
	if opts.Fingerprint == nil {
		return nil, schemas.NewDriverError("new_session", fmt.Errorf("fingerprint profile is required"))
	}

	allocCtx, err := d.allocatorFor(opts.ProxyAddress)
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(d.logger.Sugar().Debugf),
		chromedp.WithErrorf(d.logger.Sugar().Errorf),
	)

	// Tie the tab to the caller's request lifetime.
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-tabCtx.Done():
		}
	}()

	sessionID := uuid.New().String()
	page := newChromePage(tabCtx, tabCancel, sessionID, d, d.logger)

	if err := page.applyIdentity(opts); err != nil {
		page.Close()
		return nil, schemas.NewDriverError("apply_identity", err)
	}

	d.mu.Lock()
	d.sessions[sessionID] = page
	d.mu.Unlock()

	d.logger.Debug("Browser session created",
		zap.String("session_id", sessionID),
		zap.String("profile_id", opts.Fingerprint.ID),
		zap.Bool("proxied", opts.ProxyAddress != ""),
	)
	return page, nil
}

func (d *Driver) unregister(sessionID string) {
	d.mu.Lock()
	delete(d.sessions, sessionID)
	d.mu.Unlock()
}

// Shutdown closes every live session, then stops all browser processes.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	open := make([]*chromePage, 0, len(d.sessions))
	for _, p := range d.sessions {
		open = append(open, p)
	}
	d.sessions = make(map[string]*chromePage)
	allocs := d.allocators
	d.allocators = make(map[string]allocator)
	d.mu.Unlock()

	d.logger.Info("Shutting down browser driver", zap.Int("open_sessions", len(open)))

	var wg sync.WaitGroup
	for _, p := range open {
		wg.Add(1)
		go func(p *chromePage) {
			defer wg.Done()
			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := p.Close(); err != nil {
					d.logger.Warn("Error closing session during shutdown",
						zap.String("session_id", p.sessionID), zap.Error(err))
				}
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				d.logger.Warn("Session close timed out", zap.String("session_id", p.sessionID))
			case <-ctx.Done():
			}
		}(p)
	}
	wg.Wait()

	for _, alloc := range allocs {
		alloc.cancel()
	}
	d.rootCancel()

	d.logger.Info("Browser driver shutdown complete")
	return nil
}
