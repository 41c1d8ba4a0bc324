// Package raster walks the texels covered by a UV triangle using edge
// functions, with point-sampled, over-conservative and under-conservative
// coverage rules.
package raster

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/omm-baker/pkg/math"
)

// Mode selects which texels count as covered.
type Mode uint8

const (
	// ModeDefault covers texels whose center lies inside the triangle.
	ModeDefault Mode = iota
	// ModeOverConservative covers every texel the triangle touches.
	ModeOverConservative
	// ModeUnderConservative covers only texels fully inside the triangle.
	ModeUnderConservative
)

func (m Mode) String() string {
	switch m {
	case ModeOverConservative:
		return "OverConservative"
	case ModeUnderConservative:
		return "UnderConservative"
	default:
		return "Default"
	}
}

// Func is called once per covered texel with the weights of the input
// triangle's P0, P1 and P2 at the texel center.
type Func func(pixel math.Int2, bc math.Vec3)

type edge struct {
	n math.Vec2
	c float32
}

func newEdge(p, q math.Vec2) edge {
	n := math.Vec2{X: q.Y - p.Y, Y: p.X - q.X}
	return edge{n: n, c: -n.Dot(p)}
}

func (e edge) eval(s math.Vec2) float32 {
	return e.n.Dot(s) + e.c
}

// evalOver is the edge function minimized over the square [s, s+ext].
func (e edge) evalOver(s, ext math.Vec2) float32 {
	return e.eval(s) + min(e.n.X, 0)*ext.X + min(e.n.Y, 0)*ext.Y
}

// evalUnder is the edge function maximized over the square [s, s+ext].
func (e edge) evalUnder(s, ext math.Vec2) float32 {
	return e.eval(s) + max(e.n.X, 0)*ext.X + max(e.n.Y, 0)*ext.Y
}

// setup holds the cached edges of a counter-clockwise triangle in pixel units.
type setup struct {
	e0, e1, e2 edge
	aabbStart  math.Vec2
	aabbSize   math.Vec2
	area2      float32
	flipped    bool
	lo, hi     math.Int2
}

func newSetup(t math.Triangle, res math.Int2, offset math.Vec2) setup {
	rf := res.Vec2()
	flipped := t.Winding == math.WindingCW
	var s math.Triangle
	if flipped {
		s = math.NewTriangle(t.P2.Mul(rf).Add(offset), t.P1.Mul(rf).Add(offset), t.P0.Mul(rf).Add(offset))
	} else {
		s = math.NewTriangle(t.P0.Mul(rf).Add(offset), t.P1.Mul(rf).Add(offset), t.P2.Mul(rf).Add(offset))
	}

	lo := s.AABBMin.Floor().Int2()
	hi := s.AABBMax.Ceil().Int2()
	// Zero-extent boxes on integer coordinates still touch one texel column or row.
	hi.X = max(hi.X, lo.X+1)
	hi.Y = max(hi.Y, lo.Y+1)

	return setup{
		e0:        newEdge(s.P0, s.P1),
		e1:        newEdge(s.P1, s.P2),
		e2:        newEdge(s.P2, s.P0),
		aabbStart: s.AABBMin,
		aabbSize:  s.AABBMax.Sub(s.AABBMin),
		area2:     edgeFunction(s.P0, s.P1, s.P2),
		flipped:   flipped,
		lo:        lo,
		hi:        hi,
	}
}

func edgeFunction(a, b, c math.Vec2) float32 {
	return (c.X-a.X)*(b.Y-a.Y) - (c.Y-a.Y)*(b.X-a.X)
}

// aabbIntersect tests two boxes given as start + extent.
func aabbIntersect(p0, e0, p1, e1 math.Vec2) bool {
	dx := (p0.X + e0.X/2) - (p1.X + e1.X/2)
	dy := (p0.Y + e0.Y/2) - (p1.Y + e1.Y/2)
	return abs(dx)*2 < e0.X+e1.X && abs(dy)*2 < e0.Y+e1.Y
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

var pixelSize = math.Vec2{X: 1, Y: 1}

func (s *setup) pointInside(p math.Vec2) bool {
	if !aabbIntersect(p, pixelSize, s.aabbStart, s.aabbSize) {
		return false
	}
	return s.e0.eval(p) < 0 && s.e1.eval(p) < 0 && s.e2.eval(p) < 0
}

func (s *setup) squareTouches(p math.Vec2) bool {
	return s.e0.evalOver(p, pixelSize) < 0 && s.e1.evalOver(p, pixelSize) < 0 && s.e2.evalOver(p, pixelSize) < 0
}

func (s *setup) squareInside(p math.Vec2) bool {
	return s.e0.evalUnder(p, pixelSize) < 0 && s.e1.evalUnder(p, pixelSize) < 0 && s.e2.evalUnder(p, pixelSize) < 0
}

func (s *setup) barycentrics(p math.Vec2) math.Vec3 {
	// Each edge function weighs the vertex opposite to it.
	f0, f1, f2 := s.e0.eval(p), s.e1.eval(p), s.e2.eval(p)
	if s.flipped {
		return math.Vec3{X: f0, Y: f2, Z: f1}.Scale(1 / s.area2)
	}
	return math.Vec3{X: f1, Y: f2, Z: f0}.Scale(1 / s.area2)
}

// row visits one scanline and stops at the first texel after a covered run.
func (s *setup) row(mode Mode, y int32, fn Func) {
	wasInside := false
	for x := s.lo.X; x < s.hi.X; x++ {
		corner := math.Vec2{X: float32(x), Y: float32(y)}
		center := corner.AddScalar(0.5)

		var inside bool
		switch mode {
		case ModeOverConservative:
			inside = s.squareTouches(corner)
		case ModeUnderConservative:
			inside = s.squareInside(corner)
		default:
			inside = s.pointInside(center)
		}

		if inside {
			fn(math.Int2{X: x, Y: y}, s.barycentrics(center))
			wasInside = true
		} else if wasInside {
			break
		}
	}
}

// Rasterize calls fn for every texel of a res-sized grid that t (in UV
// space) covers under mode. offset is added in texel units after scaling.
func Rasterize(mode Mode, t math.Triangle, res math.Int2, offset math.Vec2, fn Func) {
	s := newSetup(t, res, offset)
	for y := s.lo.Y; y < s.hi.Y; y++ {
		s.row(mode, y, fn)
	}
}

// RasterizeParallel is Rasterize with rows spread across GOMAXPROCS workers.
// fn must be safe for concurrent use; the order of calls is unspecified.
func RasterizeParallel(ctx context.Context, mode Mode, t math.Triangle, res math.Int2, offset math.Vec2, fn Func) error {
	s := newSetup(t, res, offset)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := s.lo.Y; y < s.hi.Y; y++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.row(mode, y, fn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
