// Package bird implements the micro-triangle enumeration order used by the
// DXR and Vulkan opacity micromap formats.
//
// A triangle subdivided to level N holds 4^N micro-triangles. Index i of the
// curve maps to a micro-triangle given by the barycentric coordinates of its
// three corners.
package bird

import (
	"github.com/Faultbox/omm-baker/pkg/math"
)

// MaxLevel is the deepest subdivision level supported by the formats.
const MaxLevel = 12

// NumMicroTriangles returns 4^level.
func NumMicroTriangles(level uint32) uint32 {
	return 1 << (level << 1)
}

// extractEvenBits compacts bits 0, 2, 4... of x into the low half.
func extractEvenBits(x uint32) uint32 {
	x &= 0x55555555
	x = (x | (x >> 1)) & 0x33333333
	x = (x | (x >> 2)) & 0x0f0f0f0f
	x = (x | (x >> 4)) & 0x00ff00ff
	x = (x | (x >> 8)) & 0x0000ffff
	return x
}

// prefixEor computes the prefix xor of each 16-bit lane of x from the top.
func prefixEor(x uint32) uint32 {
	x ^= (x >> 1) & 0x7fff7fff
	x ^= (x >> 2) & 0x3fff3fff
	x ^= (x >> 4) & 0x0fff0fff
	x ^= (x >> 8) & 0x00ff00ff
	return x
}

// spreadBits is the inverse of extractEvenBits.
func spreadBits(x uint32) uint32 {
	x &= 0x0000ffff
	x = (x | (x << 8)) & 0x00ff00ff
	x = (x | (x << 4)) & 0x0f0f0f0f
	x = (x | (x << 2)) & 0x33333333
	x = (x | (x << 1)) & 0x55555555
	return x
}

// indexToDiscreteBary converts a curve index to discrete barycentrics (u, v, w).
func indexToDiscreteBary(index uint32) (u, v, w uint32) {
	b0 := extractEvenBits(index)
	b1 := extractEvenBits(index >> 1)

	fx := prefixEor(b0)
	fy := prefixEor(b0 &^ b1)

	t := fy ^ b1

	u = (fx &^ t) | (b0 &^ t) | (^b0 &^ fx & t)
	v = fy ^ b0
	w = (^fx &^ t) | (b0 &^ t) | (^b0 & fx & t)
	return u, v, w
}

// discreteBaryToIndex is the inverse of indexToDiscreteBary.
func discreteBaryToIndex(u, v, w, level uint32) uint32 {
	coordMask := uint32(1)<<level - 1

	b0 := ^(u ^ w) & coordMask
	t := (u ^ v) & b0

	f := prefixEor(t) ^ u
	b1 := ((f &^ b0) | t) & coordMask

	return spreadBits(b0) | spreadBits(b1)<<1
}

// IndexToBarycentrics returns the three corners of micro-triangle index at
// level, as (u, v) barycentrics relative to the macro triangle's P1 and P2.
func IndexToBarycentrics(index, level uint32) (p0, p1, p2 math.Vec2) {
	if level == 0 {
		return math.Vec2{X: 0, Y: 0}, math.Vec2{X: 1, Y: 0}, math.Vec2{X: 0, Y: 1}
	}

	iu, iv, iw := indexToDiscreteBary(index)
	levelMask := uint32(1)<<level - 1
	iu &= levelMask
	iv &= levelMask
	iw &= levelMask

	upright := (iu^iv^iw)&1 != 0
	if !upright {
		iu++
		iv++
	}

	scale := 1 / float32(uint32(1)<<level)
	du, dv := scale, scale
	if !upright {
		du, dv = -scale, -scale
	}

	p0 = math.Vec2{X: float32(iu) * scale, Y: float32(iv) * scale}
	p1 = math.Vec2{X: p0.X + du, Y: p0.Y}
	p2 = math.Vec2{X: p0.X, Y: p0.Y + dv}
	return p0, p1, p2
}

// GetMicroTriangle maps micro-triangle index at level onto t.
func GetMicroTriangle(t math.Triangle, index, level uint32) math.Triangle {
	b0, b1, b2 := IndexToBarycentrics(index, level)
	return math.NewTriangle(t.Interpolate(b0), t.Interpolate(b1), t.Interpolate(b2))
}

// BarycentricToIndex returns the micro-triangle containing barycentric bc at
// level and whether it is an upright triangle.
func BarycentricToIndex(bc math.Vec2, level uint32) (index uint32, upright bool) {
	n := float32(uint32(1) << level)
	iu := uint32(math.Clamp(n*bc.X, 0, n-1))
	iv := uint32(math.Clamp(n*bc.Y, 0, n-1))
	iw := uint32(math.Clamp(n*(1-bc.X-bc.Y), 0, n-1))
	upright = (iu^iv^iw)&1 != 0
	return discreteBaryToIndex(iu, iv, iw, level), upright
}
