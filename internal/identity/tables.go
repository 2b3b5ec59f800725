package identity

import "github.com/Nasapan23/undetected-scrape-api/api/schemas"

// Curated value tables for profile synthesis. Consistency rules:
// GPU pairs are chosen from the table matching the OS, screen geometry from
// the table matching the device type, and the user agent is rendered from
// browser + version + OS. Violating any of these makes a fingerprint
// trivially flaggable.

const (
	BrowserChrome  = "chrome"
	BrowserFirefox = "firefox"
	BrowserSafari  = "safari"
	BrowserEdge    = "edge"

	OSWindows = "windows"
	OSMacOS   = "macos"
	OSLinux   = "linux"

	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// browserWeights skews selection toward market-share realism.
var browserWeights = []weighted[string]{
	{BrowserChrome, 60},
	{BrowserFirefox, 15},
	{BrowserSafari, 10},
	{BrowserEdge, 15},
}

var osWeights = []weighted[string]{
	{OSWindows, 55},
	{OSMacOS, 30},
	{OSLinux, 15},
}

type weighted[T any] struct {
	value  T
	weight int
}

// gpuTables maps OS type to plausible WebGL vendor/renderer pairs.
var gpuTables = map[string][]schemas.GPUIdentity{
	OSWindows: {
		{Vendor: "Google Inc.", Renderer: "ANGLE (NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0)"},
		{Vendor: "Google Inc.", Renderer: "ANGLE (NVIDIA GeForce GTX 1660 Direct3D11 vs_5_0 ps_5_0)"},
		{Vendor: "Google Inc.", Renderer: "ANGLE (AMD Radeon RX 580 Direct3D11 vs_5_0 ps_5_0)"},
		{Vendor: "Google Inc.", Renderer: "ANGLE (Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0)"},
	},
	OSMacOS: {
		{Vendor: "Apple", Renderer: "Apple M1"},
		{Vendor: "Apple", Renderer: "Apple M2"},
		{Vendor: "Intel Inc.", Renderer: "Intel Iris Pro OpenGL Engine"},
	},
	OSLinux: {
		{Vendor: "NVIDIA Corporation", Renderer: "NVIDIA GeForce GTX 1650/PCIe/SSE2"},
		{Vendor: "Mesa/X.org", Renderer: "Mesa DRI Intel(R) UHD Graphics 620 (Kabylake GT2)"},
		{Vendor: "AMD", Renderer: "AMD Radeon Pro 5500M OpenGL Engine"},
	},
}

// screenTables maps device type to realistic display geometry.
var screenTables = map[string][][2]int{
	DeviceDesktop: {
		{1920, 1080}, {2560, 1440}, {1366, 768}, {1440, 900},
		{1536, 864}, {1680, 1050}, {3840, 2160},
	},
	DeviceMobile: {
		{390, 844}, {414, 896}, {375, 812}, {360, 780}, {412, 915},
	},
	DeviceTablet: {
		{768, 1024}, {834, 1112}, {1024, 1366}, {800, 1280},
	},
}

var timezoneTable = []schemas.TimezoneInfo{
	{Name: "America/New_York", OffsetMinutes: -5 * 60},
	{Name: "America/Los_Angeles", OffsetMinutes: -8 * 60},
	{Name: "Europe/London", OffsetMinutes: 0},
	{Name: "Europe/Berlin", OffsetMinutes: 60},
	{Name: "Europe/Paris", OffsetMinutes: 60},
	{Name: "Asia/Tokyo", OffsetMinutes: 9 * 60},
	{Name: "Australia/Sydney", OffsetMinutes: 10 * 60},
}

var languageTable = []string{"en-US", "en-GB", "fr-FR", "de-DE", "es-ES"}

var concurrencyTable = []int{2, 4, 6, 8, 12, 16}

var memoryTable = []int{2, 4, 8, 16}

var colorDepthTable = []int{24, 30, 32}

var pixelRatioTable = []float64{1, 1.5, 2, 2.5, 3}

// knownBrowserType reports whether t is a supported browser identifier.
func knownBrowserType(t string) bool {
	switch t {
	case BrowserChrome, BrowserFirefox, BrowserSafari, BrowserEdge:
		return true
	}
	return false
}

func knownOSType(t string) bool {
	switch t {
	case OSWindows, OSMacOS, OSLinux:
		return true
	}
	return false
}

func knownDeviceType(t string) bool {
	switch t {
	case DeviceDesktop, DeviceMobile, DeviceTablet:
		return true
	}
	return false
}
