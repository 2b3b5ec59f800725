package humanoid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/mocks"
)

func newTestSimulator(seed int64) *Simulator {
	s := NewSimulator(zap.NewNop(), seed)
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func TestBezierPath(t *testing.T) {
	s := newTestSimulator(1)
	start := Vector2D{X: 10, Y: 10}
	end := Vector2D{X: 500, Y: 300}

	path := bezierPath(s.rng, start, end, 12)
	require.Len(t, path, 12)
	assert.InDelta(t, start.X, path[0].X, 0.01)
	assert.InDelta(t, start.Y, path[0].Y, 0.01)
	assert.Equal(t, end, path[len(path)-1])

	t.Run("degenerate distance collapses to target", func(t *testing.T) {
		path := bezierPath(s.rng, end, end, 12)
		assert.Equal(t, []Vector2D{end}, path)
	})
}

func TestMoveToStepCount(t *testing.T) {
	ctx := context.Background()

	for seed := int64(1); seed <= 10; seed++ {
		s := newTestSimulator(seed)
		page := new(mocks.MockPage)

		var moves []Vector2D
		page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				moves = append(moves, Vector2D{
					X: args.Get(1).(float64),
					Y: args.Get(2).(float64),
				})
			}).Return(nil)

		target := Vector2D{X: 420, Y: 180}
		require.NoError(t, s.MoveTo(ctx, page, target))

		assert.GreaterOrEqual(t, len(moves), 5)
		assert.LessOrEqual(t, len(moves), 15)
		assert.Equal(t, target, moves[len(moves)-1], "cursor must land exactly on target")
	}
}

func TestMoveToPropagatesDriverError(t *testing.T) {
	s := newTestSimulator(3)
	page := new(mocks.MockPage)
	driverErr := errors.New("session gone")
	page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(driverErr)

	err := s.MoveTo(context.Background(), page, Vector2D{X: 100, Y: 100})
	assert.ErrorIs(t, err, driverErr)
}

func TestClickLandsInsideBox(t *testing.T) {
	ctx := context.Background()
	box := schemas.Box{X: 200, Y: 150, Width: 120, Height: 40}

	for seed := int64(1); seed <= 20; seed++ {
		s := newTestSimulator(seed)
		page := new(mocks.MockPage)
		page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		var clickX, clickY float64
		page.On("Click", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				clickX = args.Get(1).(float64)
				clickY = args.Get(2).(float64)
			}).Return(nil)

		require.NoError(t, s.Click(ctx, page, box))
		assert.GreaterOrEqual(t, clickX, box.X)
		assert.LessOrEqual(t, clickX, box.X+box.Width)
		assert.GreaterOrEqual(t, clickY, box.Y)
		assert.LessOrEqual(t, clickY, box.Y+box.Height)
	}
}

func TestActSwallowsInteractionFailures(t *testing.T) {
	// A seed whose first Act draw schedules at least one scroll.
	var s *Simulator
	for seed := int64(1); ; seed++ {
		s = newTestSimulator(seed)
		s.mu.Lock()
		n := s.rng.Intn(4)
		s.mu.Unlock()
		if n > 0 {
			s = newTestSimulator(seed)
			break
		}
	}

	page := new(mocks.MockPage)
	page.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no viewport"))
	page.On("ScrollBy", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("page crashed"))

	// Must return without panicking or surfacing the error.
	s.Act(context.Background(), page, time.Second)
	page.AssertCalled(t, "ScrollBy", mock.Anything, mock.Anything, mock.Anything)
}

func TestActRespectsBudget(t *testing.T) {
	s := newTestSimulator(4)
	page := new(mocks.MockPage)
	page.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	page.On("ScrollBy", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	page.On("MouseMove", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	page.On("BoundingBox", mock.Anything, mock.Anything).Return(nil, nil)
	page.On("Click", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// A zero budget performs no scrolls or wanders at all.
	s.Act(context.Background(), page, -time.Second)
	page.AssertNotCalled(t, "ScrollBy", mock.Anything, mock.Anything, mock.Anything)
	page.AssertNotCalled(t, "MouseMove", mock.Anything, mock.Anything, mock.Anything)
}

func TestEaseInOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, easeInOutCubic(0))
	assert.Equal(t, 1.0, easeInOutCubic(1))
	assert.InDelta(t, 0.5, easeInOutCubic(0.5), 1e-9)

	prev := -1.0
	for i := 0; i <= 100; i++ {
		v := easeInOutCubic(float64(i) / 100)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}
