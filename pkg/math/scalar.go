package math

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Clamp limits value to [lo, hi].
func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Lerp interpolates between a and b.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// IsZero reports whether |value| < eps.
func IsZero(value, eps float32) bool {
	return value < eps && value > -eps
}

// NextPow2 returns the smallest power of two >= v (1 for v == 0).
func NextPow2(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len32(v-1)
}

// IsPow2 reports whether v is a non-zero power of two.
func IsPow2(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// Align rounds size up to a multiple of alignment (a power of two).
func Align[T constraints.Unsigned](size, alignment T) T {
	return (size + alignment - 1) &^ (alignment - 1)
}
