package bake

import (
	stdmath "math"

	"github.com/Faultbox/omm-baker/internal/texture"
	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Coverage tallies the texels of one micro-triangle that fall above and
// below the alpha cutoff.
type Coverage struct {
	Above uint32
	Below uint32
}

// StateFromCoverage resolves a coverage tally to an opacity state.
func StateFromCoverage(format omm.Format, promotion omm.UnknownStatePromotion, gt, le omm.OpacityState, cov Coverage) omm.OpacityState {
	switch {
	case cov.Above != 0 && cov.Below != 0:
		if format == omm.Format4State {
			switch promotion {
			case omm.PromoteForceOpaque:
				return omm.UnknownOpaque
			case omm.PromoteForceTransparent:
				return omm.UnknownTransparent
			}
			if cov.Above >= cov.Below {
				return gt.Unknown()
			}
			return le.Unknown()
		}
		switch promotion {
		case omm.PromoteForceOpaque:
			return omm.Opaque
		case omm.PromoteForceTransparent:
			return omm.Transparent
		}
		if cov.Above >= cov.Below {
			return gt
		}
		return le
	case cov.Above == 0 && cov.Below == 0:
		// Nothing sampled resolves like a mixed tally.
		return StateFromCoverage(format, promotion, gt, le, Coverage{Above: 1, Below: 1})
	case cov.Above == 0:
		return le
	default:
		return gt
	}
}

// gather4 holds a 2x2 footprint as (x0y0, x0y1, x1y1, x1y0), the order the
// bilinear surface coefficients are derived from.
type gather4 [4]float32

// sampler fetches texel footprints with the bake's address mode and tiling.
type sampler struct {
	load    func(c math.Int2) float32
	mode    omm.TextureAddressMode
	size    math.Int2
	invSize math.Vec2
	border  float32
	cutoff  float32
}

func newSampler(tex *texture.Texture, mip int, desc omm.SamplerDesc, cutoff float32) *sampler {
	return &sampler{
		load:    tex.Fetcher(mip),
		mode:    desc.AddressMode,
		size:    tex.Size(mip),
		invSize: tex.RcpSize(mip),
		border:  desc.BorderAlpha,
		cutoff:  cutoff,
	}
}

func (s *sampler) fetch(c math.Int2) float32 {
	if texture.IsBorder(c) {
		return s.border
	}
	return s.load(c)
}

func (s *sampler) gather(pixel math.Int2) gather4 {
	c := texture.GatherTexCoord4(s.mode, pixel, s.size)
	return gather4{
		s.fetch(c[texture.I0x0]),
		s.fetch(c[texture.I0x1]),
		s.fetch(c[texture.I1x1]),
		s.fetch(c[texture.I1x0]),
	}
}

// kernel classifies one rasterized texel footprint of micro-triangle t.
type kernel func(s *sampler, t *math.Triangle, degenerate bool, pixel math.Int2, cov *Coverage)

// conservativeBilinear marks a footprint by the extremes of its 2x2 gather.
func conservativeBilinear(s *sampler, _ *math.Triangle, _ bool, pixel math.Int2, cov *Coverage) {
	g := s.gather(pixel)
	lo := min(g[0], g[1], g[2], g[3])
	hi := max(g[0], g[1], g[2], g[3])
	if s.cutoff < hi {
		cov.Above++
	}
	if s.cutoff > lo {
		cov.Below++
	}
}

// nearest classifies the single texel under a footprint.
func nearest(s *sampler, _ *math.Triangle, _ bool, pixel math.Int2, cov *Coverage) {
	v := s.fetch(texture.TexCoord(s.mode, pixel, s.size))
	if s.cutoff < v {
		cov.Above++
	} else {
		cov.Below++
	}
}

// levelLineIntersection finds where the cutoff iso-line of the bilinear
// surface over a footprint crosses the micro-triangle.
func levelLineIntersection(s *sampler, t *math.Triangle, degenerate bool, pixel math.Int2, cov *Coverage) {
	g := s.gather(pixel)
	pixelf := pixel.Vec2().AddScalar(0.5)

	var tallied bool
	if !degenerate {
		origin := pixelf.Mul(s.invSize)
		corners := [4]math.Vec2{
			origin,
			origin.Add(math.Vec2{Y: s.invSize.Y}),
			origin.Add(s.invSize),
			origin.Add(math.Vec2{X: s.invSize.X}),
		}
		var opaque, transparent bool
		for i, c := range corners {
			if !t.PointInTriangle(c) {
				continue
			}
			if s.cutoff < g[i] {
				opaque = true
			} else {
				transparent = true
			}
		}
		if opaque {
			cov.Above++
		}
		if transparent {
			cov.Below++
		}
		if opaque && transparent {
			return
		}
		tallied = opaque || transparent
	}

	// f(x, y) = a + b*x + c*y + d*x*y over the unit footprint.
	a := g[0]
	b := g[3] - g[0]
	c := g[1] - g[0]
	d := g[0] + g[2] - g[1] - g[3]

	if isZero(b) && isZero(c) && isZero(d) {
		if s.cutoff < a {
			cov.Above++
		} else {
			cov.Below++
		}
		return
	}

	h := [4]float32{a - s.cutoff, b, c, d}
	size := s.size.Vec2()
	var pts [3]math.Vec2
	var q []math.Vec2
	if degenerate {
		e0, e1 := longestEdge(t)
		pts[0], pts[1] = size.Mul(e0).Sub(pixelf), size.Mul(e1).Sub(pixelf)
		q = pts[:2]
	} else {
		for i := range pts {
			pts[i] = size.Mul(t.P(i)).Sub(pixelf)
		}
		q = pts[:]
	}
	edges := len(q)
	if degenerate {
		edges = 1
	}
	for e := 0; e < edges; e++ {
		if edgeCrossesLevelLine(q[e], q[(e+1)%len(q)], h) {
			cov.Above++
			cov.Below++
			return
		}
	}
	if tallied {
		return
	}

	// No corner inside and no crossing: f keeps one sign over the overlap.
	p, ok := overlapPoint(q)
	if !ok {
		return
	}
	if h[0]+h[1]*p.X+h[2]*p.Y+h[3]*p.X*p.Y > 0 {
		cov.Above++
	} else {
		cov.Below++
	}
}

// overlapPoint returns a point of the polygon (or segment) q that lies in the
// unit square, if they overlap.
func overlapPoint(q []math.Vec2) (math.Vec2, bool) {
	var c math.Vec2
	for _, p := range q {
		c = c.Add(p)
	}
	c = c.Scale(1 / float32(len(q)))
	if insideUnitSquare(c) {
		return c, true
	}
	for _, p := range q {
		if insideUnitSquare(p) {
			return p, true
		}
	}
	for e := range q {
		if p, ok := clipUnitSquare(q[e], q[(e+1)%len(q)]); ok {
			return p, true
		}
	}
	return math.Vec2{}, false
}

// clipUnitSquare clips p0-p1 to the unit square and returns the midpoint of
// what is left.
func clipUnitSquare(p0, p1 math.Vec2) (math.Vec2, bool) {
	d := p1.Sub(p0)
	t0, t1 := float32(0), float32(1)
	clip := func(p, q float32) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			t0 = max(t0, r)
		} else {
			t1 = min(t1, r)
		}
		return t0 <= t1
	}
	if !clip(-d.X, p0.X) || !clip(d.X, 1-p0.X) || !clip(-d.Y, p0.Y) || !clip(d.Y, 1-p0.Y) {
		return math.Vec2{}, false
	}
	return p0.Add(d.Scale(0.5 * (t0 + t1))), true
}

// longestEdge returns the end points of a collinear triangle's span.
func longestEdge(t *math.Triangle) (math.Vec2, math.Vec2) {
	best, bi := float32(-1), 0
	for i := 0; i < 3; i++ {
		if l := t.P(i).Distance(t.P((i + 1) % 3)); l > best {
			best, bi = l, i
		}
	}
	return t.P(bi), t.P((bi + 1) % 3)
}

func isZero(v float32) bool { return math.IsZero(v, 1e-6) }

func insideUnitSquare(p math.Vec2) bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// edgeCrossesLevelLine tests the segment p0-p1 against the curve
// h[0] + h[1]*x + h[2]*y + h[3]*x*y = 0 inside the unit square.
func edgeCrossesLevelLine(p0, p1 math.Vec2, h [4]float32) bool {
	if p0.X > p1.X {
		p0, p1 = p1, p0
	}
	length := p1.Sub(p0).Length()
	onEdge := func(p math.Vec2) bool {
		return math.IsZero(p.Distance(p0)+p.Distance(p1)-length, 1e-5)
	}
	hits := func(p math.Vec2) bool {
		return insideUnitSquare(p) && onEdge(p)
	}

	a, b, c, d := h[0], h[1], h[2], h[3]
	dx := p1.X - p0.X

	if isZero(dx) {
		x := p0.X
		c0 := d*x + c
		c1 := a + b*x
		if isZero(c0) {
			// The edge runs along an asymptote.
			return false
		}
		return hits(math.Vec2{X: x, Y: -c1 / c0})
	}

	k := (p1.Y - p0.Y) / dx
	m := p1.Y - p1.X*k

	c0 := d * k
	c1 := c*k + d*m + b
	c2 := a + c*m

	if isZero(c0) {
		if isZero(c1) {
			return false
		}
		x := -c2 / c1
		return hits(math.Vec2{X: x, Y: k*x + m})
	}

	disc := c1*c1 - 4*c0*c2
	if disc <= 0 {
		return false
	}
	root := float32(stdmath.Sqrt(float64(disc)))
	x0 := 0.5 * (-c1 + root) / c0
	x1 := 0.5 * (-c1 - root) / c0
	return hits(math.Vec2{X: x0, Y: k*x0 + m}) || hits(math.Vec2{X: x1, Y: k*x1 + m})
}

// dispatchKey selects the classification routine for a bake. Tiling is
// resolved by texture.Fetcher and addressing by the sampler.
type dispatchKey struct {
	filter    omm.TextureFilterMode
	levelLine bool
}

// classifier is a kernel plus the raster offset it expects.
type classifier struct {
	kernel kernel
	// offset shifts the raster grid so each pixel addresses a 2x2 gather.
	offset math.Vec2
	// bilinear reports whether footprints span neighbouring texels.
	bilinear bool
}

var dispatch = map[dispatchKey]classifier{
	{omm.FilterLinear, true}:   {levelLineIntersection, math.Vec2{X: -0.5, Y: -0.5}, true},
	{omm.FilterLinear, false}:  {conservativeBilinear, math.Vec2{X: -0.5, Y: -0.5}, true},
	{omm.FilterNearest, true}:  {nearest, math.Vec2{}, false},
	{omm.FilterNearest, false}: {nearest, math.Vec2{}, false},
}
