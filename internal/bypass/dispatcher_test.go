package bypass

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/challenge"
	"github.com/Nasapan23/undetected-scrape-api/internal/humanoid"
	"github.com/Nasapan23/undetected-scrape-api/internal/mocks"
)

var cleanText = strings.Repeat("plain article content with plenty of words ", 30)

const challengeText = "Just a moment... Checking your browser before accessing the site."

func newTestDispatcher(t *testing.T, solver schemas.CaptchaSolver) *Dispatcher {
	t.Helper()
	d := NewDispatcher(
		challenge.NewClassifier(zap.NewNop()),
		humanoid.NewSimulator(zap.NewNop(), 1),
		solver,
		100*time.Millisecond,
		zap.NewNop(),
	)
	d.sleep = func(ctx context.Context, _ time.Duration) error {
		// Keep polling cadence without the production delays.
		time.Sleep(time.Millisecond)
		return ctx.Err()
	}
	return d
}

// basePage wires the page reads every classification needs.
func basePage(text string) *mocks.MockPage {
	page := new(mocks.MockPage)
	page.On("SessionID").Return("session-1")
	page.On("URL", mock.Anything).Return("https://target.example.com/", nil)
	page.On("Title", mock.Anything).Return("Target", nil)
	page.On("Query", mock.Anything, mock.Anything).Return(false, nil)
	if text != "" {
		page.On("VisibleText", mock.Anything).Return(text, nil)
	}
	return page
}

func TestAttemptCleanIsNoOp(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage(cleanText)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictClean)
	require.NoError(t, err)
	assert.True(t, outcome.Solved)
	page.AssertNotCalled(t, "VisibleText", mock.Anything)
}

func TestAttemptJSChallengeClearsOnItsOwn(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage(cleanText)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	require.NoError(t, err)
	assert.True(t, outcome.Solved)
	assert.Equal(t, schemas.VerdictClean, outcome.FinalVerdict)
	page.AssertNotCalled(t, "BoundingBox", mock.Anything, mock.Anything)
}

func TestAttemptJSChallengeClicksCheckbox(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage("")
	// Challenge copy until the click, clean afterwards.
	page.On("VisibleText", mock.Anything).Return(challengeText, nil).Once()
	page.On("VisibleText", mock.Anything).Return(cleanText, nil)

	box := &schemas.Box{X: 100, Y: 200, Width: 24, Height: 24}
	page.On("BoundingBox", mock.Anything, challenge.CheckboxSelectors[0]).Return(box, nil)
	page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	page.On("Click", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	require.NoError(t, err)
	assert.True(t, outcome.Solved)
	assert.Equal(t, schemas.VerdictClean, outcome.FinalVerdict)
	page.AssertCalled(t, "Click", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, outcome.Notes, "clicked verification checkbox")
}

func TestAttemptJSChallengeDoesNotClear(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage(challengeText)
	page.On("BoundingBox", mock.Anything, mock.Anything).Return(nil, nil)
	page.On("PressKey", mock.Anything, mock.Anything).Return(nil)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	require.NoError(t, err)
	assert.False(t, outcome.Solved)
	assert.Equal(t, schemas.VerdictCloudflareJSChallenge, outcome.FinalVerdict)
}

func TestAttemptJSChallengeClicksContainerElement(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage("")
	page.On("VisibleText", mock.Anything).Return(challengeText, nil).Once()
	page.On("VisibleText", mock.Anything).Return(cleanText, nil)

	// No checkbox and no verify button; only a bare link in the container.
	box := &schemas.Box{X: 300, Y: 400, Width: 120, Height: 30}
	page.On("BoundingBox", mock.Anything, "#challenge-stage a").Return(box, nil)
	page.On("BoundingBox", mock.Anything, mock.Anything).Return(nil, nil)
	page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	page.On("Click", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	require.NoError(t, err)
	assert.True(t, outcome.Solved)
	page.AssertCalled(t, "Click", mock.Anything, mock.Anything, mock.Anything)
	page.AssertNotCalled(t, "PressKey", mock.Anything, mock.Anything)
	assert.Contains(t, outcome.Notes, "clicked interactive element in challenge container")
}

func TestAttemptJSChallengeKeyboardFallback(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage("")
	page.On("VisibleText", mock.Anything).Return(challengeText, nil).Once()
	page.On("VisibleText", mock.Anything).Return(cleanText, nil)

	// Widget lives in a cross-origin frame: nothing has a bounding box.
	page.On("BoundingBox", mock.Anything, mock.Anything).Return(nil, nil)
	page.On("PressKey", mock.Anything, mock.Anything).Return(nil)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	require.NoError(t, err)
	assert.True(t, outcome.Solved)
	page.AssertNumberOfCalls(t, "PressKey", 3)
	page.AssertNotCalled(t, "Click", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, outcome.Notes, "keyboard navigation fallback")
}

func TestAttemptJSChallengeKeyFailureIsDriverError(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage(challengeText)
	page.On("BoundingBox", mock.Anything, mock.Anything).Return(nil, nil)
	driverErr := errors.New("target closed")
	page.On("PressKey", mock.Anything, mock.Anything).Return(driverErr)

	_, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	assert.ErrorIs(t, err, driverErr)
}

func TestAttemptJSChallengeClickFailureIsDriverError(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage(challengeText)

	box := &schemas.Box{X: 100, Y: 200, Width: 24, Height: 24}
	page.On("BoundingBox", mock.Anything, challenge.CheckboxSelectors[0]).Return(box, nil)
	driverErr := errors.New("target closed")
	page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(driverErr)

	_, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareJSChallenge)
	assert.ErrorIs(t, err, driverErr)
}

func TestAttemptWaitingRoom(t *testing.T) {
	t.Run("queue advances", func(t *testing.T) {
		d := newTestDispatcher(t, nil)
		page := basePage("")
		page.On("VisibleText", mock.Anything).Return("You are now in line. Thank you for waiting.", nil).Times(2)
		page.On("VisibleText", mock.Anything).Return(cleanText, nil)

		outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareWaitingRoom)
		require.NoError(t, err)
		assert.True(t, outcome.Solved)
		assert.Equal(t, schemas.VerdictClean, outcome.FinalVerdict)
	})

	t.Run("queue stalls", func(t *testing.T) {
		d := newTestDispatcher(t, nil)
		page := basePage("You are now in line. Your estimated wait time is 10 minutes.")

		outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareWaitingRoom)
		require.NoError(t, err)
		assert.False(t, outcome.Solved)
		assert.Equal(t, schemas.VerdictCloudflareWaitingRoom, outcome.FinalVerdict)
	})
}

func TestAttemptGenericBlockSignalsRetry(t *testing.T) {
	d := newTestDispatcher(t, nil)
	page := basePage(cleanText)

	outcome, err := d.Attempt(context.Background(), page, schemas.VerdictGenericBlock)
	require.NoError(t, err)
	assert.False(t, outcome.Solved)
	assert.Equal(t, schemas.VerdictGenericBlock, outcome.FinalVerdict)
	page.AssertNotCalled(t, "Click", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttemptCaptcha(t *testing.T) {
	turnstileText := "Just a moment... verify you are human."

	t.Run("no solver configured", func(t *testing.T) {
		d := newTestDispatcher(t, nil)
		page := basePage(turnstileText)

		outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareTurnstile)
		require.NoError(t, err)
		assert.False(t, outcome.Solved)
	})

	t.Run("solver succeeds", func(t *testing.T) {
		solver := new(mocks.MockCaptchaSolver)
		d := newTestDispatcher(t, solver)

		page := basePage("")
		page.On("VisibleText", mock.Anything).Return(turnstileText, nil).Once()
		solver.On("Solve", mock.Anything, page, mock.Anything).
			Run(func(mock.Arguments) {
				page.On("VisibleText", mock.Anything).Return(cleanText, nil)
			}).
			Return(true, nil)

		outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareTurnstile)
		require.NoError(t, err)
		assert.True(t, outcome.Solved)
		solver.AssertExpectations(t)
	})

	t.Run("solver error degrades to unsolved", func(t *testing.T) {
		solver := new(mocks.MockCaptchaSolver)
		solver.On("Solve", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("upstream 502"))
		d := newTestDispatcher(t, solver)
		page := basePage(turnstileText)

		outcome, err := d.Attempt(context.Background(), page, schemas.VerdictCloudflareCaptcha)
		require.NoError(t, err, "solver failures must not abort the session")
		assert.False(t, outcome.Solved)
	})
}
