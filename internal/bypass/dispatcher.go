package bypass

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/challenge"
	"github.com/Nasapan23/undetected-scrape-api/internal/humanoid"
)

const (
	// pollInterval paces re-classification while waiting for a challenge to
	// clear.
	pollInterval = 500 * time.Millisecond

	// waitingRoomPolls and waitingRoomInterval bound how long a virtual
	// queue is tolerated before giving up on the session.
	waitingRoomPolls    = 6
	waitingRoomInterval = 30 * time.Second
)

// Outcome reports what a bypass attempt achieved. FinalVerdict is the
// classification after the attempt, whether or not it succeeded.
type Outcome struct {
	Solved       bool
	FinalVerdict schemas.ChallengeVerdict
	Notes        []string
}

// Dispatcher routes a challenge verdict to the matching bypass strategy and
// drives it against the live page. It never acts on a clean page.
type Dispatcher struct {
	classifier  *challenge.Classifier
	sim         *humanoid.Simulator
	solver      schemas.CaptchaSolver
	log         *zap.Logger
	rng         *rand.Rand
	pollTimeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher wires a dispatcher. solver may be nil, in which case captcha
// verdicts are waited out rather than solved.
func NewDispatcher(classifier *challenge.Classifier, sim *humanoid.Simulator, solver schemas.CaptchaSolver, pollTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	return NewDispatcherWithSleep(classifier, sim, solver, pollTimeout, logger, sleepContext)
}

// NewDispatcherWithSleep injects the pacing function. Tests use this to run
// wait-heavy strategies without wall-clock delays.
func NewDispatcherWithSleep(classifier *challenge.Classifier, sim *humanoid.Simulator, solver schemas.CaptchaSolver, pollTimeout time.Duration, logger *zap.Logger, sleep func(ctx context.Context, d time.Duration) error) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Dispatcher{
		classifier:  classifier,
		sim:         sim,
		solver:      solver,
		log:         logger.Named("bypass"),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		pollTimeout: pollTimeout,
		sleep:       sleep,
	}
}

// Attempt runs the strategy for verdict on page. Driver failures abort the
// attempt with an error; a challenge that simply refuses to clear is reported
// through Outcome.Solved == false with a nil error.
func (d *Dispatcher) Attempt(ctx context.Context, page schemas.Page, verdict schemas.ChallengeVerdict) (Outcome, error) {
	log := d.log.With(zap.String("session_id", page.SessionID()), zap.String("verdict", string(verdict)))

	switch verdict {
	case schemas.VerdictClean:
		return Outcome{Solved: true, FinalVerdict: verdict}, nil
	case schemas.VerdictCloudflareJSChallenge:
		return d.attemptJSChallenge(ctx, page, log)
	case schemas.VerdictCloudflareTurnstile, schemas.VerdictCloudflareCaptcha, schemas.VerdictGenericCaptcha:
		return d.attemptCaptcha(ctx, page, verdict, log)
	case schemas.VerdictCloudflareWaitingRoom:
		return d.attemptWaitingRoom(ctx, page, log)
	case schemas.VerdictGenericBlock, schemas.VerdictUnknown:
		// Nothing to interact with on a hard block; the caller decides
		// whether to burn another attempt with a fresh identity.
		log.Debug("No in-place strategy for verdict, signaling retry")
		return Outcome{
			Solved:       false,
			FinalVerdict: verdict,
			Notes:        []string{fmt.Sprintf("no in-place strategy for %s", verdict)},
		}, nil
	}
	return Outcome{Solved: false, FinalVerdict: verdict}, nil
}

// attemptJSChallenge waits for the automatic challenge to run, then clicks
// the verification checkbox or button if one appears.
func (d *Dispatcher) attemptJSChallenge(ctx context.Context, page schemas.Page, log *zap.Logger) (Outcome, error) {
	notes := []string{"js challenge: settling wait"}

	// Most JS challenges clear by themselves once scripts have executed.
	settle := time.Duration(4000+d.rng.Intn(3001)) * time.Millisecond
	if err := d.sleep(ctx, settle); err != nil {
		return Outcome{Notes: notes}, err
	}
	if verdict := d.classify(ctx, page); !verdict.IsChallenge() {
		log.Info("Challenge cleared during settling wait")
		return Outcome{Solved: true, FinalVerdict: verdict, Notes: append(notes, "cleared without interaction")}, nil
	}

	// Interactive variant: checkbox, then a verify button, then anything
	// clickable inside the challenge container.
	clicked, err := d.clickFirstVisible(ctx, page, challenge.CheckboxSelectors)
	if err != nil {
		return Outcome{Notes: notes}, err
	}
	if clicked {
		notes = append(notes, "clicked verification checkbox")
	}
	if !clicked {
		clicked, err = d.clickFirstVisible(ctx, page, challenge.VerifyButtonSelectors)
		if err != nil {
			return Outcome{Notes: notes}, err
		}
		if clicked {
			notes = append(notes, "clicked verify button")
		}
	}
	if !clicked {
		clicked, err = d.clickFirstVisible(ctx, page, challenge.GenericInteractiveSelectors)
		if err != nil {
			return Outcome{Notes: notes}, err
		}
		if clicked {
			notes = append(notes, "clicked interactive element in challenge container")
		}
	}
	if !clicked {
		// Nothing to aim the mouse at; walk focus to the widget blind.
		if err := d.keyboardFallback(ctx, page); err != nil {
			return Outcome{Notes: notes}, err
		}
		notes = append(notes, "keyboard navigation fallback")
	}

	verdict, err := d.pollUntilClear(ctx, page)
	if err != nil {
		return Outcome{Notes: notes}, err
	}
	solved := !verdict.IsChallenge()
	if solved {
		log.Info("JS challenge solved", zap.Bool("interacted", clicked))
	} else {
		log.Warn("JS challenge did not clear", zap.String("final_verdict", string(verdict)))
	}
	return Outcome{Solved: solved, FinalVerdict: verdict, Notes: notes}, nil
}

// attemptCaptcha waits out the widget and delegates to the external solver
// when one is configured.
func (d *Dispatcher) attemptCaptcha(ctx context.Context, page schemas.Page, verdict schemas.ChallengeVerdict, log *zap.Logger) (Outcome, error) {
	var notes []string

	settle := time.Duration(5000+d.rng.Intn(3001)) * time.Millisecond
	if err := d.sleep(ctx, settle); err != nil {
		return Outcome{}, err
	}
	if v := d.classify(ctx, page); !v.IsChallenge() {
		return Outcome{Solved: true, FinalVerdict: v, Notes: []string{"captcha cleared without solving"}}, nil
	}

	if d.solver == nil {
		log.Debug("No captcha solver configured")
		return Outcome{
			Solved:       false,
			FinalVerdict: verdict,
			Notes:        []string{"captcha present, no solver configured"},
		}, nil
	}

	solved, err := d.solver.Solve(ctx, page, d.pollTimeout)
	if err != nil {
		// Solver trouble is not a driver failure; degrade to unsolved.
		log.Warn("Captcha solver failed", zap.Error(err))
		return Outcome{
			Solved:       false,
			FinalVerdict: verdict,
			Notes:        []string{fmt.Sprintf("solver error: %v", err)},
		}, nil
	}
	notes = append(notes, fmt.Sprintf("solver reported %t", solved))
	if !solved {
		return Outcome{Solved: false, FinalVerdict: verdict, Notes: notes}, nil
	}

	final, err := d.pollUntilClear(ctx, page)
	if err != nil {
		return Outcome{Notes: notes}, err
	}
	return Outcome{Solved: !final.IsChallenge(), FinalVerdict: final, Notes: notes}, nil
}

// attemptWaitingRoom sits in the queue, re-checking at a slow cadence.
func (d *Dispatcher) attemptWaitingRoom(ctx context.Context, page schemas.Page, log *zap.Logger) (Outcome, error) {
	notes := []string{"entered waiting room"}

	for i := 0; i < waitingRoomPolls; i++ {
		if err := d.sleep(ctx, waitingRoomInterval); err != nil {
			return Outcome{Notes: notes}, err
		}
		verdict := d.classify(ctx, page)
		if verdict != schemas.VerdictCloudflareWaitingRoom {
			solved := !verdict.IsChallenge()
			log.Info("Left waiting room", zap.Int("polls", i+1), zap.String("verdict", string(verdict)))
			return Outcome{
				Solved:       solved,
				FinalVerdict: verdict,
				Notes:        append(notes, fmt.Sprintf("left queue after %d polls", i+1)),
			}, nil
		}
	}

	log.Warn("Still queued after maximum waiting room polls")
	return Outcome{
		Solved:       false,
		FinalVerdict: schemas.VerdictCloudflareWaitingRoom,
		Notes:        append(notes, "queue did not advance"),
	}, nil
}

// clickFirstVisible clicks the first selector with a visible bounding box
// using the humanoid cursor. Probe errors on individual selectors are
// skipped; a click failure is a driver error and aborts.
func (d *Dispatcher) clickFirstVisible(ctx context.Context, page schemas.Page, selectors []string) (bool, error) {
	for _, sel := range selectors {
		box, err := page.BoundingBox(ctx, sel)
		if err != nil || box == nil || box.Width <= 0 || box.Height <= 0 {
			continue
		}
		if err := d.sim.Click(ctx, page, *box); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// keyboardFallback tabs focus onto the challenge widget and activates it
// with Enter, for variants that render the checkbox inside a cross-origin
// frame where no bounding box is visible.
func (d *Dispatcher) keyboardFallback(ctx context.Context, page schemas.Page) error {
	for _, key := range []string{"Tab", "Tab", "Enter"} {
		if err := page.PressKey(ctx, key); err != nil {
			return err
		}
		pause := time.Duration(300+d.rng.Intn(401)) * time.Millisecond
		if err := d.sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

// pollUntilClear re-classifies the page until it stops being a challenge or
// the poll timeout elapses. Returns the last verdict seen.
func (d *Dispatcher) pollUntilClear(ctx context.Context, page schemas.Page) (schemas.ChallengeVerdict, error) {
	deadline := time.Now().Add(d.pollTimeout)
	verdict := d.classify(ctx, page)
	for verdict.IsChallenge() && time.Now().Before(deadline) {
		if err := d.sleep(ctx, pollInterval); err != nil {
			return verdict, err
		}
		verdict = d.classify(ctx, page)
	}
	return verdict, nil
}

func (d *Dispatcher) classify(ctx context.Context, page schemas.Page) schemas.ChallengeVerdict {
	return d.classifier.Classify(ctx, challenge.SnapshotPage(ctx, page))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
