// Package bake classifies the micro-triangles of textured triangles and
// assembles opacity micromap buffers.
package bake

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/omm-baker/internal/diag"
	"github.com/Faultbox/omm-baker/internal/raster"
	"github.com/Faultbox/omm-baker/internal/texture"
	"github.com/Faultbox/omm-baker/pkg/bird"
	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Options configure a bake.
type Options struct {
	Allocator omm.Allocator
	Reporter  diag.Reporter
}

// Result is a bake result whose buffers belong to an allocator.
type Result struct {
	omm.BakeResult
	alloc omm.Allocator
}

// NewResult wraps buffers allocated from alloc.
func NewResult(r omm.BakeResult, alloc omm.Allocator) *Result {
	return &Result{BakeResult: r, alloc: alloc}
}

// Free returns the buffers to the allocator.
func (r *Result) Free() {
	if r.alloc == nil {
		return
	}
	if r.ArrayData != nil {
		r.alloc.Free(r.ArrayData)
	}
	if r.IndexBuffer != nil {
		r.alloc.Free(r.IndexBuffer)
	}
	r.BakeResult = omm.BakeResult{}
}

// plan is the per-primitive work resolved before classification.
type plan struct {
	tri        math.Triangle
	level      uint32
	format     omm.Format
	invalid    bool
	degenerate bool
}

// baker carries the state shared by every primitive of one bake.
type baker struct {
	ctx      context.Context
	in       *omm.BakeInput
	tex      *texture.Texture
	cls      classifier
	samplers []*sampler
	table    *dedupTable
	// splitRows spreads the rows of large footprints across workers when
	// there are too few primitives to keep them busy.
	splitRows bool
}

// splitRowsTexels is the footprint size from which rows are split.
const splitRowsTexels = 1 << 14

// Bake classifies every primitive of in against tex. Validation and
// workload checks run before any output is allocated.
func Bake(ctx context.Context, tex *texture.Texture, in *omm.BakeInput, opts Options) (*Result, error) {
	r := opts.Reporter
	alloc := opts.Allocator
	if alloc == nil {
		alloc = omm.SystemAllocator{}
	}
	if err := Validate(in, tex, r); err != nil {
		return nil, err
	}

	start := time.Now()
	g := newGeometry(in)
	cls := dispatch[dispatchKey{in.Sampler.Filter, !in.Flags.Has(omm.DisableLevelLineIntersection)}]

	plans, workload := planPrimitives(g, tex, cls.bilinear)
	if workload > omm.DefaultMaxWorkloadSize {
		r.PerfWarning("The workload consists of %d work items (number of texels to classify), which corresponds to roughly %d 1024x1024 textures. This is unusually large and may result in long bake times.",
			workload, workload>>20)
	}
	if in.Flags.Has(omm.EnableWorkloadValidation) {
		limit := in.MaxWorkloadSize
		if limit == 0 {
			limit = omm.DefaultMaxWorkloadSize
		}
		if workload > limit {
			return nil, r.WorkloadTooBig("the workload of %d texels across %d triangles exceeds the limit of %d", workload, len(plans), limit)
		}
	}

	b := &baker{
		ctx:       ctx,
		in:        in,
		tex:       tex,
		cls:       cls,
		table:     newDedupTable(!in.Flags.Has(omm.DisableDuplicateDetection)),
		splitRows: in.Flags.Has(omm.EnableInternalThreads) && len(plans) < runtime.GOMAXPROCS(0),
	}
	for mip := 0; mip < tex.MipCount(); mip++ {
		b.samplers = append(b.samplers, newSampler(tex, mip, in.Sampler, in.AlphaCutoff))
	}

	prims := make([]primResult, len(plans))
	var eg errgroup.Group
	if in.Flags.Has(omm.EnableInternalThreads) {
		eg.SetLimit(runtime.GOMAXPROCS(0))
	} else {
		eg.SetLimit(1)
	}
	for i := range plans {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%w: classifying triangle %d: %v", omm.ErrFailure, i, p)
				}
			}()
			prims[i] = b.classify(i, &plans[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, r.Error(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := 0
	if in.Flags.Has(omm.EnableNearDuplicateDetection) {
		merged = b.table.mergeNearDuplicates(in.NearDuplicateThreshold, in.UnknownStatePromotion)
	}

	res := compact(b.table, prims, in.Flags.Has(omm.Force32BitIndices), alloc)
	r.Info("bake finished",
		zap.Int("triangles", len(plans)),
		zap.Uint64("workload", workload),
		zap.Int("descriptors", len(res.DescArray)),
		zap.Int("nearDuplicatesMerged", merged),
		zap.Int("arrayDataBytes", len(res.ArrayData)),
		zap.Duration("elapsed", time.Since(start)))
	return NewResult(res, alloc), nil
}

// planPrimitives resolves level and format per primitive and sums the texel
// workload over every mip.
func planPrimitives(g geometry, tex *texture.Texture, bilinear bool) ([]plan, uint64) {
	in := g.in
	plans := make([]plan, in.TriangleCount())
	size0 := tex.Size(0)
	var workload uint64
	for i := range plans {
		p := &plans[i]
		p.tri = g.triangle(i)
		p.format = g.format(i)
		if !p.tri.IsFinite() {
			p.invalid = true
			continue
		}
		p.degenerate = p.tri.IsDegenerate()
		if p.degenerate {
			p.level = 0
		} else {
			override, ok := g.levelOverride(i)
			texelArea := p.tri.Area() * float64(size0.X) * float64(size0.Y)
			p.level = SubdivisionLevel(override, ok, texelArea, in.DynamicSubdivisionScale, uint32(in.MaxSubdivisionLevel))
		}
		for mip := 0; mip < tex.MipCount(); mip++ {
			workload += texelFootprint(p.tri.AABBMin, p.tri.AABBMax, tex.Size(mip), bilinear).area()
		}
	}
	return plans, workload
}

func (b *baker) unknownSpecial() omm.SpecialIndex {
	if b.in.UnknownStatePromotion == omm.PromoteForceTransparent {
		return omm.FullyUnknownTransparent
	}
	return omm.FullyUnknownOpaque
}

// classify produces the micromap of one primitive and reduces it to a
// special index where possible.
func (b *baker) classify(prim int, p *plan) primResult {
	if p.invalid {
		return specialResult(omm.FullyUnknownOpaque)
	}

	in := b.in
	mm := NewMicromap(p.level, p.format)
	n := mm.Len()
	var counts [4]int
	for i := 0; i < n; i++ {
		micro := bird.GetMicroTriangle(p.tri, uint32(i), p.level)
		var cov Coverage
		for mip, s := range b.samplers {
			b.cover(s, mip, &micro, p.degenerate, &cov)
		}
		st := StateFromCoverage(p.format, in.UnknownStatePromotion, in.AlphaCutoffGreater, in.AlphaCutoffLessEqual, cov)
		mm.Set(i, st)
		counts[st]++
	}

	if in.RejectionThreshold > 0 {
		known := counts[omm.Opaque] + counts[omm.Transparent]
		if float32(known)/float32(n) < in.RejectionThreshold {
			return specialResult(b.unknownSpecial())
		}
	}
	if !in.Flags.Has(omm.DisableSpecialIndices) {
		for st, c := range counts {
			if c == n {
				return specialResult(omm.OpacityState(st).SpecialIndex())
			}
		}
	}
	return primResult{entry: b.table.insert(prim, mm)}
}

// cover accumulates the coverage of micro-triangle t on one mip.
func (b *baker) cover(s *sampler, mip int, t *math.Triangle, degenerate bool, cov *Coverage) {
	fp := texelFootprint(t.AABBMin, t.AABBMax, s.size, b.cls.bilinear)
	if _, ok := b.tex.AlphaCutoff(); ok {
		if fp.inside(s.size) {
			above, area := b.tex.CountAbove(mip, fp.x0, fp.y0, fp.x1, fp.y1)
			switch above {
			case area:
				cov.Above++
				return
			case 0:
				cov.Below++
				return
			}
		}
	}
	if t.AABBMin == t.AABBMax {
		// A point has no edges to rasterize; classify the footprint holding it.
		p := s.size.Vec2().Mul(t.AABBMin).Add(b.cls.offset)
		pixel := math.Int2{X: floorInt(p.X), Y: floorInt(p.Y)}
		b.cls.kernel(s, t, degenerate, pixel, cov)
		return
	}
	if b.splitRows && fp.area() >= splitRowsTexels {
		b.coverRows(s, t, degenerate, cov)
		return
	}
	raster.Rasterize(raster.ModeOverConservative, *t, s.size, b.cls.offset, func(pixel math.Int2, _ math.Vec3) {
		b.cls.kernel(s, t, degenerate, pixel, cov)
	})
}

// coverRows is cover's raster pass with rows classified in parallel.
func (b *baker) coverRows(s *sampler, t *math.Triangle, degenerate bool, cov *Coverage) {
	var above, below atomic.Uint32
	// Cancellation surfaces through Bake once classification returns.
	_ = raster.RasterizeParallel(b.ctx, raster.ModeOverConservative, *t, s.size, b.cls.offset, func(pixel math.Int2, _ math.Vec3) {
		var c Coverage
		b.cls.kernel(s, t, degenerate, pixel, &c)
		above.Add(c.Above)
		below.Add(c.Below)
	})
	cov.Above += above.Load()
	cov.Below += below.Load()
}
