package humanoid

import (
	"math"
	"math/rand"
)

// Vector2D is a 2D point or displacement in CSS pixels.
type Vector2D struct {
	X, Y float64
}

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{v.X + o.X, v.Y + o.Y} }
func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{v.X - o.X, v.Y - o.Y} }
func (v Vector2D) Mul(s float64) Vector2D  { return Vector2D{v.X * s, v.Y * s} }

func (v Vector2D) Dist(o Vector2D) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// easeInOutCubic gives the velocity profile of a real arm movement: slow
// start, fast middle, controlled stop.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// bezierPath samples a cubic Bezier curve from start to end with randomized
// control points perpendicular to the travel direction, so no two movements
// between the same pair of points share a trajectory.
func bezierPath(rng *rand.Rand, start, end Vector2D, steps int) []Vector2D {
	if steps < 2 {
		return []Vector2D{end}
	}

	travel := end.Sub(start)
	dist := start.Dist(end)
	if dist < 1.0 {
		return []Vector2D{end}
	}

	// Perpendicular unit vector for lateral bow.
	perp := Vector2D{-travel.Y / dist, travel.X / dist}

	bow1 := (rng.Float64()*0.4 - 0.2) * dist
	bow2 := (rng.Float64()*0.4 - 0.2) * dist
	p0 := start
	p1 := start.Add(travel.Mul(0.30 + rng.Float64()*0.10)).Add(perp.Mul(bow1))
	p2 := start.Add(travel.Mul(0.60 + rng.Float64()*0.10)).Add(perp.Mul(bow2))
	p3 := end

	path := make([]Vector2D, steps)
	for i := 0; i < steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps-1))
		omt := 1 - t
		path[i] = p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
	}
	path[steps-1] = end
	return path
}
