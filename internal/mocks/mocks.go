package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

// -- Browser Driver Mock --

// MockBrowserDriver mocks the schemas.BrowserDriver interface.
type MockBrowserDriver struct {
	mock.Mock
}

func (m *MockBrowserDriver) NewSession(ctx context.Context, opts schemas.SessionOptions) (schemas.Page, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Page), args.Error(1)
}

func (m *MockBrowserDriver) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Page Mock --

// MockPage mocks the schemas.Page interface.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) SessionID() string {
	return m.Called().String(0)
}

func (m *MockPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return m.Called(ctx, url, timeout).Error(0)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) VisibleText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Query(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) BoundingBox(ctx context.Context, selector string) (*schemas.Box, error) {
	args := m.Called(ctx, selector)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Box), args.Error(1)
}

func (m *MockPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	return m.Called(ctx, script, out).Error(0)
}

func (m *MockPage) MouseMove(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockPage) Click(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockPage) PressKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockPage) ScrollBy(ctx context.Context, dx, dy int) error {
	return m.Called(ctx, dx, dy).Error(0)
}

func (m *MockPage) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Cookie), args.Error(1)
}

func (m *MockPage) SetCookies(ctx context.Context, cookies []schemas.Cookie) error {
	return m.Called(ctx, cookies).Error(0)
}

func (m *MockPage) ClearCookies(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPage) Close() error {
	return m.Called().Error(0)
}

// -- Captcha Solver Mock --

// MockCaptchaSolver mocks the schemas.CaptchaSolver interface.
type MockCaptchaSolver struct {
	mock.Mock
}

func (m *MockCaptchaSolver) Solve(ctx context.Context, page schemas.Page, timeout time.Duration) (bool, error) {
	args := m.Called(ctx, page, timeout)
	return args.Bool(0), args.Error(1)
}

// -- Payload Generator Mock --

// MockPayloadGenerator mocks the schemas.PayloadGenerator interface.
type MockPayloadGenerator struct {
	mock.Mock
}

func (m *MockPayloadGenerator) InitScript(profile *schemas.FingerprintProfile) (string, error) {
	args := m.Called(profile)
	return args.String(0), args.Error(1)
}
