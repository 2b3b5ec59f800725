package identity

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

// Generator synthesizes internally consistent fingerprint profiles from the
// value tables. A fixed seed reproduces the same sequence of profiles, which
// the tests rely on.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a generator seeded with seed. A seed of zero seeds
// from the wall clock.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// Generate produces a new profile. Empty constraint strings are filled with
// weighted random picks; non-empty ones must name a known value.
func (g *Generator) Generate(browserType, osType, deviceType string) (*schemas.FingerprintProfile, error) {
	if browserType == "" {
		browserType = pickWeighted(g.rng, browserWeights)
	} else if !knownBrowserType(browserType) {
		return nil, &schemas.ValidationError{Field: "browser_type", Reason: fmt.Sprintf("unknown browser %q", browserType)}
	}
	if osType == "" {
		// Safari only ships on Apple hardware.
		if browserType == BrowserSafari {
			osType = OSMacOS
		} else {
			osType = pickWeighted(g.rng, osWeights)
		}
	} else if !knownOSType(osType) {
		return nil, &schemas.ValidationError{Field: "os_type", Reason: fmt.Sprintf("unknown os %q", osType)}
	}
	if browserType == BrowserSafari && osType != OSMacOS {
		return nil, &schemas.ValidationError{Field: "os_type", Reason: "safari profiles require macos"}
	}
	if deviceType == "" {
		deviceType = DeviceDesktop
	} else if !knownDeviceType(deviceType) {
		return nil, &schemas.ValidationError{Field: "device_type", Reason: fmt.Sprintf("unknown device %q", deviceType)}
	}

	browserVersion := g.browserVersion(browserType)
	osVersion := g.osVersion(osType)
	geom := pick(g.rng, screenTables[deviceType])
	tz := pick(g.rng, timezoneTable)
	lang := pick(g.rng, languageTable)
	createdAt := g.now().UTC()

	profile := &schemas.FingerprintProfile{
		ID:   g.profileID(),
		Name: fmt.Sprintf("%s-%s-%s", browserType, osType, deviceType),
		Browser: schemas.BrowserIdentity{
			Type:      browserType,
			Version:   browserVersion,
			UserAgent: buildUserAgent(browserType, browserVersion, osType, osVersion, deviceType),
			Language:  lang,
		},
		OS: schemas.OSIdentity{
			Type:    osType,
			Version: osVersion,
		},
		Device: schemas.DeviceIdentity{
			Type: deviceType,
			Screen: schemas.Screen{
				Width:      geom[0],
				Height:     geom[1],
				ColorDepth: pick(g.rng, colorDepthTable),
				PixelRatio: pick(g.rng, pixelRatioTable),
			},
		},
		GPU:      pick(g.rng, gpuTables[osType]),
		Timezone: tz,
		Hardware: schemas.HardwareInfo{
			Concurrency: pick(g.rng, concurrencyTable),
			MemoryGB:    pick(g.rng, memoryTable),
		},
		CreatedAt:  createdAt,
		LastUsedAt: createdAt,
	}
	return profile, nil
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func (g *Generator) profileID() string {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteByte(idAlphabet[g.rng.Intn(len(idAlphabet))])
	}
	return b.String()
}

func (g *Generator) browserVersion(browserType string) string {
	switch browserType {
	case BrowserChrome:
		return fmt.Sprintf("1%d.0.%d.%d", 20+g.rng.Intn(8), 6000+g.rng.Intn(500), g.rng.Intn(200))
	case BrowserEdge:
		return fmt.Sprintf("1%d.0.%d.%d", 20+g.rng.Intn(8), 2500+g.rng.Intn(300), g.rng.Intn(100))
	case BrowserFirefox:
		return fmt.Sprintf("1%d.0", 20+g.rng.Intn(10))
	case BrowserSafari:
		return fmt.Sprintf("17.%d", g.rng.Intn(6))
	}
	return "0.0"
}

func (g *Generator) osVersion(osType string) string {
	switch osType {
	case OSWindows:
		return pick(g.rng, []string{"10.0", "11.0"})
	case OSMacOS:
		return fmt.Sprintf("14.%d", g.rng.Intn(6))
	case OSLinux:
		return "x86_64"
	}
	return ""
}

// buildUserAgent renders the canonical user agent string for the identity
// tuple. The formats mirror what each vendor actually ships.
func buildUserAgent(browserType, browserVersion, osType, osVersion, deviceType string) string {
	platform := uaPlatform(osType, osVersion, deviceType)
	switch browserType {
	case BrowserChrome:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", platform, browserVersion)
	case BrowserEdge:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36 Edg/%s", platform, browserVersion, browserVersion)
	case BrowserFirefox:
		return fmt.Sprintf("Mozilla/5.0 (%s; rv:%s) Gecko/20100101 Firefox/%s", platform, browserVersion, browserVersion)
	case BrowserSafari:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%s Safari/605.1.15", platform, browserVersion)
	}
	return fmt.Sprintf("Mozilla/5.0 (%s)", platform)
}

func uaPlatform(osType, osVersion, deviceType string) string {
	switch osType {
	case OSWindows:
		return fmt.Sprintf("Windows NT %s; Win64; x64", osVersion)
	case OSMacOS:
		if deviceType == DeviceMobile || deviceType == DeviceTablet {
			kind := "iPhone"
			if deviceType == DeviceTablet {
				kind = "iPad"
			}
			return fmt.Sprintf("%s; CPU OS %s like Mac OS X", kind, strings.ReplaceAll(osVersion, ".", "_"))
		}
		return fmt.Sprintf("Macintosh; Intel Mac OS X %s", strings.ReplaceAll(osVersion, ".", "_"))
	case OSLinux:
		if deviceType == DeviceMobile || deviceType == DeviceTablet {
			return "Linux; Android 14"
		}
		return "X11; Linux x86_64"
	}
	return osType
}

func pick[T any](rng *rand.Rand, values []T) T {
	return values[rng.Intn(len(values))]
}

func pickWeighted[T any](rng *rand.Rand, values []weighted[T]) T {
	total := 0
	for _, v := range values {
		total += v.weight
	}
	n := rng.Intn(total)
	for _, v := range values {
		n -= v.weight
		if n < 0 {
			return v.value
		}
	}
	return values[len(values)-1].value
}
