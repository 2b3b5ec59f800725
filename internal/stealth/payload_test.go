package stealth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

func testProfile() *schemas.FingerprintProfile {
	return &schemas.FingerprintProfile{
		ID: "abcd1234",
		Browser: schemas.BrowserIdentity{
			Type:      "chrome",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0",
			Language:  "en-US",
		},
		OS:     schemas.OSIdentity{Type: "windows", Version: "10.0"},
		Device: schemas.DeviceIdentity{Type: "desktop", Screen: schemas.Screen{Width: 1920, Height: 1080, ColorDepth: 24, PixelRatio: 1}},
		GPU:    schemas.GPUIdentity{Vendor: "Google Inc.", Renderer: "ANGLE (NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0)"},
		Timezone: schemas.TimezoneInfo{
			Name:          "America/New_York",
			OffsetMinutes: -300,
		},
		Hardware: schemas.HardwareInfo{Concurrency: 8, MemoryGB: 16},
	}
}

func TestInitScript(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	script, err := g.InitScript(testProfile())
	require.NoError(t, err)

	t.Run("placeholder fully substituted", func(t *testing.T) {
		assert.NotContains(t, script, fingerprintPlaceholder)
	})

	t.Run("profile values bound", func(t *testing.T) {
		assert.Contains(t, script, `"userAgent":"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0"`)
		assert.Contains(t, script, `"platform":"Win32"`)
		assert.Contains(t, script, `"timezone":"America/New_York"`)
		assert.Contains(t, script, `"timezoneOffsetMinutes":-300`)
		assert.Contains(t, script, "NVIDIA GeForce RTX 3060")
	})

	t.Run("covers the usual detection probes", func(t *testing.T) {
		for _, probe := range []string{"webdriver", "hardwareConcurrency", "getParameter", "resolvedOptions", "window.chrome"} {
			assert.Contains(t, script, probe)
		}
	})
}

func TestInitScriptNilProfile(t *testing.T) {
	g := NewGenerator(zap.NewNop())
	_, err := g.InitScript(nil)
	require.Error(t, err)
}

func TestNavigatorPlatform(t *testing.T) {
	assert.Equal(t, "Win32", navigatorPlatform("windows"))
	assert.Equal(t, "MacIntel", navigatorPlatform("macos"))
	assert.Equal(t, "Linux x86_64", navigatorPlatform("linux"))
	assert.Equal(t, "Win32", navigatorPlatform("beos"))
}

func TestInitScriptDistinctPerProfile(t *testing.T) {
	g := NewGenerator(zap.NewNop())

	a := testProfile()
	b := testProfile()
	b.Browser.UserAgent = strings.Replace(b.Browser.UserAgent, "124.0", "125.0", 1)

	sa, err := g.InitScript(a)
	require.NoError(t, err)
	sb, err := g.InitScript(b)
	require.NoError(t, err)
	assert.NotEqual(t, sa, sb)
}
