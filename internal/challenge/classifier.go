package challenge

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

// shortPageThreshold is the text length below which a page with
// challenge-flavored vocabulary is treated as suspicious.
const shortPageThreshold = 500

// Snapshot is the read-only view of a page the classifier works on. Probe
// reports whether a selector currently matches; it must swallow driver errors
// and return false for them, so a flaky DOM never escalates a verdict.
type Snapshot struct {
	URL   string
	Title string
	Text  string
	Probe func(ctx context.Context, selector string) bool
}

// SnapshotPage captures a Snapshot from a live page. Read failures leave the
// corresponding field empty rather than propagating.
func SnapshotPage(ctx context.Context, page schemas.Page) Snapshot {
	snap := Snapshot{
		Probe: func(ctx context.Context, selector string) bool {
			found, err := page.Query(ctx, selector)
			return err == nil && found
		},
	}
	if url, err := page.URL(ctx); err == nil {
		snap.URL = url
	}
	if title, err := page.Title(ctx); err == nil {
		snap.Title = title
	}
	if text, err := page.VisibleText(ctx); err == nil {
		snap.Text = text
	}
	return snap
}

// Classifier turns page snapshots into challenge verdicts. Classification is
// pure with respect to the snapshot: the same snapshot always yields the same
// verdict.
type Classifier struct {
	log *zap.Logger
}

func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{log: logger.Named("classifier")}
}

// Classify applies detectors in severity order. Widgets outrank text
// indicators, and text indicators outrank the short-page heuristic, so a
// Turnstile page never degrades to a generic verdict just because its copy
// also mentions waiting.
func (c *Classifier) Classify(ctx context.Context, snap Snapshot) schemas.ChallengeVerdict {
	text := strings.ToLower(snap.Text)
	title := strings.ToLower(snap.Title)
	// The URL participates in matching too: a challenge redirect can land on
	// a /cdn-cgi/ path whose body is unreadable.
	haystack := strings.ToLower(snap.URL) + "\n" + title + "\n" + text

	cfContext := containsAny(haystack, challengePhrases) || c.probeAny(ctx, snap, ChallengeContainerSelectors)

	verdict := schemas.VerdictClean
	switch {
	case c.probeAny(ctx, snap, TurnstileSelectors):
		verdict = schemas.VerdictCloudflareTurnstile
	case c.probeAny(ctx, snap, CaptchaSelectors):
		if cfContext {
			verdict = schemas.VerdictCloudflareCaptcha
		} else {
			verdict = schemas.VerdictGenericCaptcha
		}
	case cfContext && c.probeAny(ctx, snap, CheckboxSelectors):
		verdict = schemas.VerdictCloudflareJSChallenge
	case containsAny(haystack, waitingRoomPhrases):
		verdict = schemas.VerdictCloudflareWaitingRoom
	case cfContext:
		verdict = schemas.VerdictCloudflareJSChallenge
	case containsAny(haystack, blockPhrases):
		verdict = schemas.VerdictGenericBlock
	case len(text) > 0 && len(text) < shortPageThreshold && containsAny(text, shortPageKeywords):
		verdict = schemas.VerdictGenericBlock
	}

	if verdict != schemas.VerdictClean {
		c.log.Debug("Challenge detected",
			zap.String("verdict", string(verdict)),
			zap.String("url", snap.URL),
			zap.Int("text_length", len(text)),
		)
	}
	return verdict
}

func (c *Classifier) probeAny(ctx context.Context, snap Snapshot, selectors []string) bool {
	if snap.Probe == nil {
		return false
	}
	for _, sel := range selectors {
		if snap.Probe(ctx, sel) {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
