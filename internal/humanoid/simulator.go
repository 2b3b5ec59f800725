package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

// tremorSigma is the per-step Gaussian jitter in pixels.
const tremorSigma = 0.6

// perlinAmplitude scales the slow physiological drift layered on top of the
// ideal trajectory.
const perlinAmplitude = 2.5

// Simulator produces plausible pointer, scroll and dwell activity on a page.
// All randomness flows through one seeded source, so sessions can be replayed
// in tests. Every interaction failure is swallowed and logged; behavior
// simulation must never sink a scrape on its own.
type Simulator struct {
	log    *zap.Logger
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin

	mu         sync.Mutex
	rng        *rand.Rand
	currentPos Vector2D

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSimulator returns a simulator seeded with seed; zero seeds from the
// clock.
func NewSimulator(logger *zap.Logger, seed int64) *Simulator {
	return NewSimulatorWithSleep(logger, seed, sleepContext)
}

// NewSimulatorWithSleep injects the pacing function. Tests use this to run
// trajectories without wall-clock delays.
func NewSimulatorWithSleep(logger *zap.Logger, seed int64, sleep func(ctx context.Context, d time.Duration) error) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	const alpha, beta, octaves = 2.0, 2.0, 3
	return &Simulator{
		log:        logger.Named("humanoid"),
		rng:        rand.New(rand.NewSource(seed)),
		noiseX:     perlin.NewPerlin(alpha, beta, octaves, seed),
		noiseY:     perlin.NewPerlin(alpha, beta, octaves, seed+1),
		currentPos: Vector2D{X: 640, Y: 400},
		sleep:      sleep,
	}
}

// MoveTo walks the cursor to target along a randomized Bezier curve with
// Perlin drift and Gaussian tremor, in 5 to 15 steps with 10 to 50ms pauses.
func (s *Simulator) MoveTo(ctx context.Context, page schemas.Page, target Vector2D) error {
	s.mu.Lock()
	start := s.currentPos
	steps := 5 + s.rng.Intn(11)
	path := bezierPath(s.rng, start, target, steps)
	s.mu.Unlock()

	began := time.Now()
	for i, point := range path {
		elapsed := time.Since(began).Seconds()
		drift := Vector2D{
			X: s.noiseX.Noise1D(elapsed*0.8) * perlinAmplitude,
			Y: s.noiseY.Noise1D(elapsed*0.8) * perlinAmplitude,
		}
		s.mu.Lock()
		jitter := Vector2D{
			X: s.rng.NormFloat64() * tremorSigma,
			Y: s.rng.NormFloat64() * tremorSigma,
		}
		pause := time.Duration(10+s.rng.Intn(41)) * time.Millisecond
		s.mu.Unlock()

		point = point.Add(drift).Add(jitter)
		// Land exactly on target so the follow-up click hits the element.
		if i == len(path)-1 {
			point = target
		}
		if err := page.MouseMove(ctx, point.X, point.Y); err != nil {
			return err
		}
		s.mu.Lock()
		s.currentPos = point
		s.mu.Unlock()

		if err := s.sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

// Click moves to a point inside box and clicks it. The landing point is
// Gaussian-biased toward the center of the box, clamped inside it.
func (s *Simulator) Click(ctx context.Context, page schemas.Page, box schemas.Box) error {
	s.mu.Lock()
	x := box.X + box.Width/2 + s.rng.NormFloat64()*box.Width/6
	y := box.Y + box.Height/2 + s.rng.NormFloat64()*box.Height/6
	dwell := time.Duration(50+s.rng.Intn(101)) * time.Millisecond
	s.mu.Unlock()

	x = math.Max(box.X+1, math.Min(x, box.X+box.Width-1))
	y = math.Max(box.Y+1, math.Min(y, box.Y+box.Height-1))

	if err := s.MoveTo(ctx, page, Vector2D{X: x, Y: y}); err != nil {
		return err
	}
	if err := s.sleep(ctx, dwell); err != nil {
		return err
	}
	return page.Click(ctx, x, y)
}

// Act performs a short burst of ambient activity: up to three scrolls, one or
// two pointer wanders, occasionally a link hover or a form field focus. It
// stops early when budget runs out and never returns interaction errors.
func (s *Simulator) Act(ctx context.Context, page schemas.Page, budget time.Duration) {
	deadline := time.Now().Add(budget)
	width, height := s.viewport(ctx, page)

	s.mu.Lock()
	scrolls := s.rng.Intn(4)
	wanders := 1 + s.rng.Intn(2)
	hover := s.rng.Float64() < 0.10
	formFocus := s.rng.Float64() < 0.05
	s.mu.Unlock()

	for i := 0; i < scrolls && time.Now().Before(deadline); i++ {
		s.mu.Lock()
		dy := 120 + s.rng.Intn(480)
		pause := time.Duration(300+s.rng.Intn(600)) * time.Millisecond
		s.mu.Unlock()

		if err := page.ScrollBy(ctx, 0, dy); err != nil {
			s.log.Debug("Ambient scroll failed", zap.Error(err))
			return
		}
		if s.sleep(ctx, pause) != nil {
			return
		}
	}

	for i := 0; i < wanders && time.Now().Before(deadline); i++ {
		s.mu.Lock()
		target := Vector2D{
			X: 20 + s.rng.Float64()*(width-40),
			Y: 20 + s.rng.Float64()*(height-40),
		}
		s.mu.Unlock()

		if err := s.MoveTo(ctx, page, target); err != nil {
			s.log.Debug("Ambient pointer move failed", zap.Error(err))
			return
		}
	}

	if hover && time.Now().Before(deadline) {
		s.hoverRandomLink(ctx, page)
	}
	if formFocus && time.Now().Before(deadline) {
		s.focusRandomField(ctx, page)
	}
}

func (s *Simulator) hoverRandomLink(ctx context.Context, page schemas.Page) {
	box, err := page.BoundingBox(ctx, "a[href]")
	if err != nil || box == nil {
		return
	}
	target := Vector2D{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
	if err := s.MoveTo(ctx, page, target); err != nil {
		s.log.Debug("Link hover failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	dwell := time.Duration(200+s.rng.Intn(600)) * time.Millisecond
	s.mu.Unlock()
	_ = s.sleep(ctx, dwell)
}

func (s *Simulator) focusRandomField(ctx context.Context, page schemas.Page) {
	box, err := page.BoundingBox(ctx, "input[type='text'], input[type='search'], textarea")
	if err != nil || box == nil {
		return
	}
	if err := s.Click(ctx, page, *box); err != nil {
		s.log.Debug("Form focus failed", zap.Error(err))
	}
}

func (s *Simulator) viewport(ctx context.Context, page schemas.Page) (width, height float64) {
	var dims struct {
		W float64 `json:"w"`
		H float64 `json:"h"`
	}
	err := page.Evaluate(ctx, "({w: window.innerWidth, h: window.innerHeight})", &dims)
	if err != nil || dims.W <= 0 || dims.H <= 0 {
		return 1280, 800
	}
	return dims.W, dims.H
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
