package bake

import (
	stdmath "math"

	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// SubdivisionLevel picks the level of one primitive. An explicit override
// wins, then the dynamic heuristic when scale > 0, then maxLevel.
// texelArea is the triangle's area measured in texels.
func SubdivisionLevel(override uint32, hasOverride bool, texelArea float64, scale float32, maxLevel uint32) uint32 {
	if hasOverride {
		return min(override, omm.MaxSubdivisionLevel)
	}
	if scale > 0 {
		return DynamicLevel(texelArea, scale, maxLevel)
	}
	return maxLevel
}

// DynamicLevel returns the smallest level whose micro-triangles cover at most
// scale*scale texels each, clamped to maxLevel.
func DynamicLevel(texelArea float64, scale float32, maxLevel uint32) uint32 {
	target := float64(scale) * float64(scale)
	ratio := texelArea / target
	if ratio <= 1 || stdmath.IsNaN(ratio) {
		return 0
	}
	lvl := stdmath.Ceil(stdmath.Log2(ratio) / 2)
	if lvl >= float64(maxLevel) {
		return maxLevel
	}
	return uint32(lvl)
}

// footprint is a half-open texel rectangle.
type footprint struct {
	x0, y0, x1, y1 int32
}

func (f footprint) area() uint64 {
	if f.x1 <= f.x0 || f.y1 <= f.y0 {
		return 0
	}
	return uint64(f.x1-f.x0) * uint64(f.y1-f.y0)
}

func (f footprint) inside(size math.Int2) bool {
	return f.x0 >= 0 && f.y0 >= 0 && f.x1 <= size.X && f.y1 <= size.Y
}

// texelFootprint returns the texels a classifier reads for the UV box
// [lo, hi]. Bilinear footprints include the neighbour used by the gather.
func texelFootprint(lo, hi math.Vec2, size math.Int2, bilinear bool) footprint {
	s := size.Vec2()
	a := lo.Mul(s)
	b := hi.Mul(s)
	if bilinear {
		a = a.AddScalar(-0.5)
		b = b.AddScalar(-0.5)
	}
	f := footprint{
		x0: floorInt(a.X),
		y0: floorInt(a.Y),
		x1: ceilInt(b.X),
		y1: ceilInt(b.Y),
	}
	if bilinear {
		f.x1++
		f.y1++
	}
	f.x1 = max(f.x1, f.x0+1)
	f.y1 = max(f.y1, f.y0+1)
	return f
}

// texel coordinates are kept well inside int32 so footprints never overflow.
const coordLimit = 1 << 28

func floorInt(v float32) int32 {
	return int32(math.Clamp(stdmath.Floor(float64(v)), -coordLimit, coordLimit))
}

func ceilInt(v float32) int32 {
	return int32(math.Clamp(stdmath.Ceil(float64(v)), -coordLimit, coordLimit))
}
