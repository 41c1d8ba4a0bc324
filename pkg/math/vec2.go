// Package math provides the small vector and triangle types used by the baker.
package math

import "math"

// Vec2 is a 2D vector in UV or texel space.
type Vec2 struct {
	X, Y float32
}

// Int2 is an integer texel coordinate or size.
type Int2 struct {
	X, Y int32
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Scale returns v * scalar.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Mul returns the component-wise product.
func (v Vec2) Mul(other Vec2) Vec2 {
	return Vec2{v.X * other.X, v.Y * other.Y}
}

// AddScalar adds s to both components.
func (v Vec2) AddScalar(s float32) Vec2 {
	return Vec2{v.X + s, v.Y + s}
}

// Dot returns the dot product.
func (v Vec2) Dot(other Vec2) float32 {
	return v.X*other.X + v.Y*other.Y
}

// Length returns the magnitude.
func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// Distance returns the distance to another point.
func (v Vec2) Distance(other Vec2) float32 {
	return v.Sub(other).Length()
}

// Floor rounds both components down.
func (v Vec2) Floor() Vec2 {
	return Vec2{float32(math.Floor(float64(v.X))), float32(math.Floor(float64(v.Y)))}
}

// Ceil rounds both components up.
func (v Vec2) Ceil() Vec2 {
	return Vec2{float32(math.Ceil(float64(v.X))), float32(math.Ceil(float64(v.Y)))}
}

// Fract returns v - floor(v).
func (v Vec2) Fract() Vec2 {
	return v.Sub(v.Floor())
}

// Min returns the component-wise minimum.
func (v Vec2) Min(other Vec2) Vec2 {
	return Vec2{min(v.X, other.X), min(v.Y, other.Y)}
}

// Max returns the component-wise maximum.
func (v Vec2) Max(other Vec2) Vec2 {
	return Vec2{max(v.X, other.X), max(v.Y, other.Y)}
}

// IsFinite reports whether neither component is NaN or infinite.
func (v Vec2) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

// Int2 truncates toward zero.
func (v Vec2) Int2() Int2 {
	return Int2{int32(v.X), int32(v.Y)}
}

// Vec2 converts to floating point.
func (v Int2) Vec2() Vec2 {
	return Vec2{float32(v.X), float32(v.Y)}
}

// Add returns v + other.
func (v Int2) Add(other Int2) Int2 {
	return Int2{v.X + other.X, v.Y + other.Y}
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
