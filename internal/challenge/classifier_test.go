package challenge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

func snapshotWith(text string, matching ...string) Snapshot {
	matches := make(map[string]bool, len(matching))
	for _, sel := range matching {
		matches[sel] = true
	}
	return Snapshot{
		URL:   "https://target.example.com/",
		Title: "Target",
		Text:  text,
		Probe: func(_ context.Context, selector string) bool {
			return matches[selector]
		},
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(zap.NewNop())
	ctx := context.Background()

	longCopy := strings.Repeat("regular product copy with lots of detail ", 30)

	tests := []struct {
		name string
		snap Snapshot
		want schemas.ChallengeVerdict
	}{
		{
			name: "clean page",
			snap: snapshotWith(longCopy),
			want: schemas.VerdictClean,
		},
		{
			name: "turnstile widget",
			snap: snapshotWith("Just a moment...", ".cf-turnstile"),
			want: schemas.VerdictCloudflareTurnstile,
		},
		{
			name: "captcha inside cloudflare interstitial",
			snap: snapshotWith("checking your browser before accessing", "iframe[src*='hcaptcha.com']"),
			want: schemas.VerdictCloudflareCaptcha,
		},
		{
			name: "standalone captcha",
			snap: snapshotWith(longCopy, ".g-recaptcha"),
			want: schemas.VerdictGenericCaptcha,
		},
		{
			name: "js challenge by phrase",
			snap: snapshotWith("Just a moment... Checking your browser before accessing the site."),
			want: schemas.VerdictCloudflareJSChallenge,
		},
		{
			name: "js challenge by container",
			snap: snapshotWith("please stand by", "#challenge-running"),
			want: schemas.VerdictCloudflareJSChallenge,
		},
		{
			name: "italian interstitial",
			snap: snapshotWith("Un momento... verifica di essere un essere umano."),
			want: schemas.VerdictCloudflareJSChallenge,
		},
		{
			name: "german interstitial",
			snap: snapshotWith("Überprüfung Ihres Browsers, einen Moment bitte."),
			want: schemas.VerdictCloudflareJSChallenge,
		},
		{
			name: "waiting room",
			snap: snapshotWith("You are now in line. Your estimated wait time is 4 minutes."),
			want: schemas.VerdictCloudflareWaitingRoom,
		},
		{
			name: "hard block",
			snap: snapshotWith("Access denied. You have been blocked. Error 1020."),
			want: schemas.VerdictGenericBlock,
		},
		{
			name: "short suspicious page",
			snap: snapshotWith("security check in progress"),
			want: schemas.VerdictGenericBlock,
		},
		{
			name: "short but innocuous page",
			snap: snapshotWith("hello world"),
			want: schemas.VerdictClean,
		},
		{
			name: "empty page",
			snap: snapshotWith(""),
			want: schemas.VerdictClean,
		},
		{
			name: "challenge redirect url with unreadable body",
			snap: Snapshot{URL: "https://target.example.com/cdn-cgi/challenge-platform/h/g/orchestrate"},
			want: schemas.VerdictCloudflareJSChallenge,
		},
		{
			name: "challenge token in query string",
			snap: Snapshot{URL: "https://target.example.com/?__cf_chl_tk=abc123"},
			want: schemas.VerdictCloudflareJSChallenge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(ctx, tc.snap))
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	c := NewClassifier(zap.NewNop())
	ctx := context.Background()

	// A page carrying every signal at once resolves to the most specific one.
	snap := snapshotWith(
		"Just a moment... you are now in line. Access denied.",
		".cf-turnstile", ".g-recaptcha", "#challenge-running",
	)
	assert.Equal(t, schemas.VerdictCloudflareTurnstile, c.Classify(ctx, snap))

	snap = snapshotWith(
		"Just a moment... you are now in line. Access denied.",
		".g-recaptcha", "#challenge-running",
	)
	assert.Equal(t, schemas.VerdictCloudflareCaptcha, c.Classify(ctx, snap))
}

func TestClassifyIdempotent(t *testing.T) {
	c := NewClassifier(zap.NewNop())
	ctx := context.Background()
	snap := snapshotWith("Checking your browser before accessing")

	first := c.Classify(ctx, snap)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(ctx, snap))
	}
}

func TestClassifyProbeFailuresAreFalse(t *testing.T) {
	c := NewClassifier(zap.NewNop())
	snap := Snapshot{Text: strings.Repeat("ordinary content here ", 40), Probe: nil}
	assert.Equal(t, schemas.VerdictClean, c.Classify(context.Background(), snap))
}
