package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

// chromePage implements schemas.Page for one chromedp tab context.
type chromePage struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	sessionID string
	driver    *Driver
	logger    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.Page = (*chromePage)(nil)

func newChromePage(tabCtx context.Context, tabCancel context.CancelFunc, sessionID string, driver *Driver, logger *zap.Logger) *chromePage {
	return &chromePage{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		sessionID: sessionID,
		driver:    driver,
		logger:    logger.Named("page").With(zap.String("session_id", sessionID)),
	}
}

// applyIdentity configures the tab to present the session's fingerprint.
// Must run before the first navigation so nothing leaks on the initial load.
func (p *chromePage) applyIdentity(opts schemas.SessionOptions) error {
	fp := opts.Fingerprint
	mobile := fp.Device.Type == "mobile" || fp.Device.Type == "tablet"

	actions := chromedp.Tasks{
		// Initialize the tab connection.
		chromedp.Navigate("about:blank"),
		emulation.SetUserAgentOverride(fp.Browser.UserAgent).
			WithAcceptLanguage(fp.Browser.Language),
		emulation.SetDeviceMetricsOverride(
			int64(fp.Device.Screen.Width),
			int64(fp.Device.Screen.Height),
			fp.Device.Screen.PixelRatio,
			mobile,
		),
		emulation.SetTimezoneOverride(fp.Timezone.Name),
	}
	if opts.InitScript != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(opts.InitScript).Do(ctx)
			return err
		}))
	}

	return chromedp.Run(p.tabCtx, actions)
}

func (p *chromePage) SessionID() string { return p.sessionID }

// run executes actions against the tab, bounding them with the caller's
// context and wrapping failures as driver errors.
func (p *chromePage) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContexts(p.tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return schemas.NewDriverError(op, err)
	}
	return nil
}

// mergeContexts derives a chromedp-compatible context from the tab that is
// additionally cancelled when the caller's context ends.
func mergeContexts(tabCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-callerCtx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}

func (p *chromePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.run(ctx, "goto",
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, "url", chromedp.Location(&location))
	return location, err
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, "title", chromedp.Title(&title))
	return title, err
}

func (p *chromePage) VisibleText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, "visible_text", chromedp.Text("body", &text, chromedp.ByQuery))
	return text, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, "html", chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Query(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	err := p.run(ctx, "query", chromedp.Evaluate(script, &found))
	return found, err
}

// boundingBoxScript returns found=false rather than null so the result is
// always JSON-decodable.
const boundingBoxScript = `((sel) => {
	const el = document.querySelector(sel);
	if (!el) return {found: false, x: 0, y: 0, width: 0, height: 0};
	const r = el.getBoundingClientRect();
	if (r.width === 0 || r.height === 0) return {found: false, x: 0, y: 0, width: 0, height: 0};
	return {found: true, x: r.x, y: r.y, width: r.width, height: r.height};
})(%q)`

func (p *chromePage) BoundingBox(ctx context.Context, selector string) (*schemas.Box, error) {
	var result struct {
		Found  bool    `json:"found"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	script := fmt.Sprintf(boundingBoxScript, selector)
	if err := p.run(ctx, "bounding_box", chromedp.Evaluate(script, &result)); err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	return &schemas.Box{X: result.X, Y: result.Y, Width: result.Width, Height: result.Height}, nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out interface{}) error {
	return p.run(ctx, "evaluate", chromedp.Evaluate(script, out))
}

func (p *chromePage) MouseMove(ctx context.Context, x, y float64) error {
	return p.run(ctx, "mouse_move", chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func (p *chromePage) Click(ctx context.Context, x, y float64) error {
	return p.run(ctx, "click", chromedp.ActionFunc(func(ctx context.Context) error {
		press := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithButtons(1).
			WithClickCount(1)
		if err := press.Do(ctx); err != nil {
			return err
		}
		release := input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		return release.Do(ctx)
	}))
}

func (p *chromePage) PressKey(ctx context.Context, key string) error {
	return p.run(ctx, "press_key", chromedp.KeyEvent(key))
}

func (p *chromePage) ScrollBy(ctx context.Context, dx, dy int) error {
	script := fmt.Sprintf("window.scrollBy(%d, %d)", dx, dy)
	return p.run(ctx, "scroll_by", chromedp.Evaluate(script, nil))
}

func (p *chromePage) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, "cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]schemas.Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(c.Expires)
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return p.run(ctx, "set_cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
}

func (p *chromePage) ClearCookies(ctx context.Context) error {
	return p.run(ctx, "clear_cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.ClearCookies().Do(ctx)
	}))
}

// Close tears down the tab context. Safe to call more than once.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.driver.unregister(p.sessionID)
		p.tabCancel()
		p.logger.Debug("Session closed")
	})
	return p.closeErr
}
