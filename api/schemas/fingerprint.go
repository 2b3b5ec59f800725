package schemas

import "time"

// -- Fingerprint Models --
// A FingerprintProfile is immutable once created, except for LastUsedAt which
// the identity store touches on load. All fields are internally consistent:
// the GPU pair comes from an OS-appropriate table, the screen belongs to the
// device type, and the user agent string matches browser, version and OS.

// FingerprintProfile is a persisted, reusable browser identity.
type FingerprintProfile struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Browser    BrowserIdentity `json:"browser"`
	OS         OSIdentity      `json:"os"`
	Device     DeviceIdentity  `json:"device"`
	GPU        GPUIdentity     `json:"gpu"`
	Timezone   TimezoneInfo    `json:"timezone"`
	Hardware   HardwareInfo    `json:"hardware"`
	CreatedAt  time.Time       `json:"created_at"`
	LastUsedAt time.Time       `json:"last_used_at"`
}

// BrowserIdentity describes the emulated browser.
type BrowserIdentity struct {
	Type      string `json:"type"`
	Version   string `json:"version"`
	UserAgent string `json:"user_agent"`
	Language  string `json:"language"`
}

// OSIdentity describes the emulated operating system.
type OSIdentity struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// DeviceIdentity describes the emulated device and its screen.
type DeviceIdentity struct {
	Type   string `json:"type"`
	Screen Screen `json:"screen"`
}

// Screen holds display geometry.
type Screen struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	ColorDepth int     `json:"color_depth"`
	PixelRatio float64 `json:"pixel_ratio"`
}

// GPUIdentity is the WebGL vendor/renderer pair exposed to the page.
type GPUIdentity struct {
	Vendor   string `json:"vendor"`
	Renderer string `json:"renderer"`
}

// TimezoneInfo pairs an IANA name with its UTC offset.
type TimezoneInfo struct {
	Name          string `json:"name"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// HardwareInfo covers navigator.hardwareConcurrency and deviceMemory.
type HardwareInfo struct {
	Concurrency int `json:"concurrency"`
	MemoryGB    int `json:"memory_gb"`
}

// ProfileSummary is the lightweight listing form of a profile.
type ProfileSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	BrowserType string    `json:"browser_type"`
	OSType      string    `json:"os_type"`
	DeviceType  string    `json:"device_type"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}
