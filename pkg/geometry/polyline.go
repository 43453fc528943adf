package geometry

import (
	"errors"
	"math"
	"sort"
)

// ErrDegenerateCurve is returned when a polyline has no length.
var ErrDegenerateCurve = errors.New("curve needs at least two distinct points")

// Polyline is a piecewise linear curve in world space.
// Its parameter runs from 0 at the first point to len(points)-1 at the last,
// the integer part selecting the segment.
type Polyline struct {
	points     []Vector3
	cumulative []float64 // arc length from the start to each point
}

// NewPolyline builds a polyline through the given points.
// Consecutive duplicate points are dropped.
func NewPolyline(points ...Vector3) (*Polyline, error) {
	p := &Polyline{}
	if err := p.SetPoints(points...); err != nil {
		return nil, err
	}
	return p, nil
}

// SetPoints replaces the control points, so a curve can move between frames.
func (p *Polyline) SetPoints(points ...Vector3) error {
	kept := make([]Vector3, 0, len(points))
	for _, pt := range points {
		if len(kept) > 0 && kept[len(kept)-1].Eq(pt) {
			continue
		}
		kept = append(kept, pt)
	}
	if len(kept) < 2 {
		return ErrDegenerateCurve
	}

	cumulative := make([]float64, len(kept))
	for i := 1; i < len(kept); i++ {
		cumulative[i] = cumulative[i-1] + kept[i].DistanceTo(kept[i-1])
	}
	p.points = kept
	p.cumulative = cumulative
	return nil
}

// Points returns a copy of the control points.
func (p *Polyline) Points() []Vector3 {
	return append([]Vector3(nil), p.points...)
}

// Length is the total arc length.
func (p *Polyline) Length() float64 {
	return p.cumulative[len(p.cumulative)-1]
}

// MaxParam is the parameter of the last point.
func (p *Polyline) MaxParam() float64 {
	return float64(len(p.points) - 1)
}

// segment splits a parameter into a segment index and the fraction along it.
func (p *Polyline) segment(t float64) (int, float64) {
	t = math.Max(0, math.Min(t, p.MaxParam()))
	i := int(t)
	if i >= len(p.points)-1 {
		return len(p.points) - 2, 1
	}
	return i, t - float64(i)
}

// PointAt returns the point at parameter t (clamped to the curve).
func (p *Polyline) PointAt(t float64) Vector3 {
	i, f := p.segment(t)
	return p.points[i].Lerp(p.points[i+1], f)
}

// Tangent returns the unit direction of the curve at parameter t.
func (p *Polyline) Tangent(t float64) Vector3 {
	i, _ := p.segment(t)
	return p.points[i+1].Sub(p.points[i]).Unit()
}

// ArcLength returns the length of the curve from the start to parameter t.
func (p *Polyline) ArcLength(t float64) float64 {
	i, f := p.segment(t)
	return p.cumulative[i] + f*(p.cumulative[i+1]-p.cumulative[i])
}

// ParamAtArcLength is the inverse of ArcLength.
func (p *Polyline) ParamAtArcLength(length float64) float64 {
	if length <= 0 {
		return 0
	}
	if length >= p.Length() {
		return p.MaxParam()
	}
	// first point whose cumulative length is >= length
	j := sort.SearchFloat64s(p.cumulative, length)
	i := j - 1
	span := p.cumulative[j] - p.cumulative[i]
	return float64(i) + (length-p.cumulative[i])/span
}

// ClosestPoint returns the point of the curve nearest to q and its parameter.
func (p *Polyline) ClosestPoint(q Vector3) (Vector3, float64) {
	best, bestParam := p.points[0], 0.0
	bestDistSq := math.MaxFloat64
	for i := 0; i < len(p.points)-1; i++ {
		a, b := p.points[i], p.points[i+1]
		ab := b.Sub(a)
		f := q.Sub(a).Dot(ab) / ab.LenSqr()
		f = math.Max(0, math.Min(1, f))
		candidate := a.Add(ab.Mul(f))
		if d := candidate.DistanceSquaredTo(q); d < bestDistSq {
			best, bestParam, bestDistSq = candidate, float64(i)+f, d
		}
	}
	return best, bestParam
}
