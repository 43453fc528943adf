package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vector3 is a point or direction in world space. Y is the vertical axis,
// the horizontal plane is (X, Z).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Up is the unit vertical vector.
var Up = Vector3{Y: 1}

// NewVector3 creates a new Vector3.
func NewVector3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

func (v Vector3) vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromVec(w r3.Vec) Vector3 {
	return Vector3{X: w.X, Y: w.Y, Z: w.Z}
}

// String implements the fmt.Stringer interface.
func (v Vector3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// Add adds two vectors and returns the result.
func (v Vector3) Add(other Vector3) Vector3 {
	return fromVec(r3.Add(v.vec(), other.vec()))
}

// Sub subtracts the other vector from the current vector.
func (v Vector3) Sub(other Vector3) Vector3 {
	return fromVec(r3.Sub(v.vec(), other.vec()))
}

// Mul scales the vector by a scalar value.
func (v Vector3) Mul(scalar float64) Vector3 {
	return fromVec(r3.Scale(scalar, v.vec()))
}

// Neg returns the opposite vector.
func (v Vector3) Neg() Vector3 {
	return Vector3{-v.X, -v.Y, -v.Z}
}

// Div scales the vector by 1/scalar.
// A zero scalar returns an infinite vector together with ErrDivideByZero.
func (v Vector3) Div(scalar float64) (Vector3, error) {
	if scalar == 0 {
		inf := math.Inf(1)
		return Vector3{inf, inf, inf}, ErrDivideByZero
	}
	return v.Mul(1 / scalar), nil
}

// Dot calculates the dot product of two vectors.
func (v Vector3) Dot(other Vector3) float64 {
	return r3.Dot(v.vec(), other.vec())
}

// Cross calculates the cross product v × other.
func (v Vector3) Cross(other Vector3) Vector3 {
	return fromVec(r3.Cross(v.vec(), other.vec()))
}

// LenSqr calculates the squared magnitude of the vector.
func (v Vector3) LenSqr() float64 {
	return r3.Norm2(v.vec())
}

// Len calculates the magnitude of the vector.
func (v Vector3) Len() float64 {
	return r3.Norm(v.vec())
}

// IsZero reports whether the vector is effectively the zero vector.
func (v Vector3) IsZero() bool {
	return v.LenSqr() < Epsilon*Epsilon
}

// Normalize returns the vector rescaled to the given length.
// The zero vector, or a vector already at that length, is returned unchanged.
func (v Vector3) Normalize(length float64) Vector3 {
	l := v.Len()
	if l < Epsilon || math.Abs(l-length) < Epsilon {
		return v
	}
	return v.Mul(length / l)
}

// Unit returns a unit vector in the same direction (zero stays zero).
func (v Vector3) Unit() Vector3 {
	return v.Normalize(1)
}

// Truncate limits the magnitude of the vector to max.
func (v Vector3) Truncate(max float64) Vector3 {
	if v.LenSqr() > max*max {
		return v.Normalize(max)
	}
	return v
}

// DistanceTo calculates the Euclidean distance to another vector.
func (v Vector3) DistanceTo(other Vector3) float64 {
	return v.Sub(other).Len()
}

// DistanceSquaredTo calculates the squared Euclidean distance to another vector.
func (v Vector3) DistanceSquaredTo(other Vector3) float64 {
	return v.Sub(other).LenSqr()
}

// Horizontal projects the vector on the horizontal plane, (X, Z) -> (X, Y).
func (v Vector3) Horizontal() Vector2D {
	return Vector2D{X: v.X, Y: v.Z}
}

// Flatten drops the vertical component.
func (v Vector3) Flatten() Vector3 {
	return Vector3{X: v.X, Z: v.Z}
}

// AngleTo returns the signed angle in degrees between v and other.
// With horizontalOnly both vectors are projected on the horizontal plane first.
// In full 3D the sign matches the horizontal convention (opposite to the
// vertical component of v × other).
// The result is 0 if either vector is zero.
func (v Vector3) AngleTo(other Vector3, horizontalOnly bool) float64 {
	if horizontalOnly {
		return v.Horizontal().SignedAngleTo(other.Horizontal())
	}
	if v.IsZero() || other.IsZero() {
		return 0
	}
	cos := v.Dot(other) / (v.Len() * other.Len())
	cos = math.Max(-1, math.Min(1, cos))
	angle := math.Acos(cos) * 180 / math.Pi
	if v.Cross(other).Y > 0 {
		return -angle
	}
	return angle
}

// RotateHorizontal rotates the vector around the vertical axis by degrees.
// Positive angles follow the sign convention of AngleTo with horizontalOnly.
func (v Vector3) RotateHorizontal(degrees float64) Vector3 {
	h := v.Horizontal().Rotate(degrees)
	return Vector3{X: h.X, Y: v.Y, Z: h.Y}
}

// Lerp linearly interpolates between v and target, t in [0, 1].
func (v Vector3) Lerp(target Vector3, t float64) Vector3 {
	return v.Add(target.Sub(v).Mul(t))
}

// Eq checks if two vectors are approximately equal using the Epsilon constant.
func (v Vector3) Eq(other Vector3) bool {
	return math.Abs(v.X-other.X) <= Epsilon &&
		math.Abs(v.Y-other.Y) <= Epsilon &&
		math.Abs(v.Z-other.Z) <= Epsilon
}
