package stealth

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

//go:embed evasions.js
var evasionsJS string

const fingerprintPlaceholder = "__FINGERPRINT__"

// Generator renders the per-session anti-fingerprinting init script by
// binding a profile into the embedded evasions template.
type Generator struct {
	log *zap.Logger
}

func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{log: logger.Named("stealth")}
}

// jsFingerprint is the shape the template consumes. Field names are part of
// the template contract.
type jsFingerprint struct {
	UserAgent             string        `json:"userAgent"`
	Language              string        `json:"language"`
	Platform              string        `json:"platform"`
	Concurrency           int           `json:"concurrency"`
	DeviceMemory          int           `json:"deviceMemory"`
	Timezone              string        `json:"timezone"`
	TimezoneOffsetMinutes int           `json:"timezoneOffsetMinutes"`
	Screen                jsScreen      `json:"screen"`
	GPU                   jsGPU         `json:"gpu"`
}

type jsScreen struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorDepth int     `json:"colorDepth"`
	PixelRatio float64 `json:"pixelRatio"`
}

type jsGPU struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}

// InitScript implements schemas.PayloadGenerator.
func (g *Generator) InitScript(profile *schemas.FingerprintProfile) (string, error) {
	if profile == nil {
		return "", fmt.Errorf("stealth: nil fingerprint profile")
	}

	payload := jsFingerprint{
		UserAgent:             profile.Browser.UserAgent,
		Language:              profile.Browser.Language,
		Platform:              navigatorPlatform(profile.OS.Type),
		Concurrency:           profile.Hardware.Concurrency,
		DeviceMemory:          profile.Hardware.MemoryGB,
		Timezone:              profile.Timezone.Name,
		TimezoneOffsetMinutes: profile.Timezone.OffsetMinutes,
		Screen: jsScreen{
			Width:      profile.Device.Screen.Width,
			Height:     profile.Device.Screen.Height,
			ColorDepth: profile.Device.Screen.ColorDepth,
			PixelRatio: profile.Device.Screen.PixelRatio,
		},
		GPU: jsGPU{
			Vendor:   profile.GPU.Vendor,
			Renderer: profile.GPU.Renderer,
		},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("stealth: encoding fingerprint payload: %w", err)
	}

	script := strings.Replace(evasionsJS, fingerprintPlaceholder, string(raw), 1)
	g.log.Debug("Rendered init script",
		zap.String("profile_id", profile.ID),
		zap.Int("script_bytes", len(script)),
	)
	return script, nil
}

// navigatorPlatform maps an OS type to the value navigator.platform reports
// on that OS.
func navigatorPlatform(osType string) string {
	switch osType {
	case "windows":
		return "Win32"
	case "macos":
		return "MacIntel"
	case "linux":
		return "Linux x86_64"
	}
	return "Win32"
}
