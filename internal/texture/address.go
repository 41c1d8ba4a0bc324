package texture

import (
	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Sentinel coordinates returned by the addressing functions.
const (
	TexCoordInvalid int32 = 0x7FFFFFFF
	TexCoordBorder  int32 = 0x7FFFFFFE
)

// Texel offsets within a 2x2 gather.
const (
	I0x0 = iota
	I1x0
	I0x1
	I1x1
)

// IsBorder reports whether either axis of c fell outside a Border sampler.
func IsBorder(c math.Int2) bool {
	return c.X == TexCoordBorder || c.Y == TexCoordBorder
}

// TexCoord resolves an unbounded texel coordinate to one inside the texture
// according to mode.
func TexCoord(mode omm.TextureAddressMode, c, size math.Int2) math.Int2 {
	switch mode {
	case omm.AddressWrap:
		return math.Int2{X: wrap(c.X, size.X), Y: wrap(c.Y, size.Y)}
	case omm.AddressMirror:
		return math.Int2{X: mirror(c.X, size.X), Y: mirror(c.Y, size.Y)}
	case omm.AddressClamp:
		return math.Int2{X: math.Clamp(c.X, 0, size.X-1), Y: math.Clamp(c.Y, 0, size.Y-1)}
	case omm.AddressBorder:
		res := c
		if c.X < 0 || c.X >= size.X {
			res.X = TexCoordBorder
		}
		if c.Y < 0 || c.Y >= size.Y {
			res.Y = TexCoordBorder
		}
		return res
	case omm.AddressMirrorOnce:
		return math.Int2{
			X: math.Clamp(reflect(c.X), 0, size.X-1),
			Y: math.Clamp(reflect(c.Y), 0, size.Y-1),
		}
	default:
		return math.Int2{X: TexCoordInvalid, Y: TexCoordInvalid}
	}
}

// GatherTexCoord4 resolves the 2x2 footprint whose top-left texel is c,
// ordered I0x0, I1x0, I0x1, I1x1.
func GatherTexCoord4(mode omm.TextureAddressMode, c, size math.Int2) [4]math.Int2 {
	o := TexCoord(mode, c, size)
	o11 := TexCoord(mode, c.Add(math.Int2{X: 1, Y: 1}), size)
	return [4]math.Int2{
		I0x0: {X: o.X, Y: o.Y},
		I1x0: {X: o11.X, Y: o.Y},
		I0x1: {X: o.X, Y: o11.Y},
		I1x1: {X: o11.X, Y: o11.Y},
	}
}

func wrap(c, size int32) int32 {
	if math.IsPow2(uint32(size)) {
		return c & (size - 1)
	}
	m := c % size
	if m < 0 {
		m += size
	}
	return m
}

// reflect maps -1 to 0, -2 to 1 and so on, leaving non-negative values alone.
func reflect(c int32) int32 {
	if c < 0 {
		return -c - 1
	}
	return c
}

func mirror(c, size int32) int32 {
	a := reflect(c)
	wrapped := a % size
	if (a/size)&1 == 1 {
		return size - wrapped - 1
	}
	return wrapped
}
