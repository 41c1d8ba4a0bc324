package raster

import (
	"context"
	"sync"
	"testing"

	"github.com/Faultbox/omm-baker/pkg/math"
)

func collect(mode Mode, t math.Triangle, res math.Int2, offset math.Vec2) map[math.Int2]math.Vec3 {
	got := make(map[math.Int2]math.Vec3)
	Rasterize(mode, t, res, offset, func(p math.Int2, bc math.Vec3) {
		got[p] = bc
	})
	return got
}

func TestRasterizeModes(t *testing.T) {
	lower := math.NewTriangle(math.Vec2{X: 0, Y: 0}, math.Vec2{X: 1, Y: 0}, math.Vec2{X: 0, Y: 1})
	res := math.Int2{X: 8, Y: 8}

	tests := []struct {
		mode Mode
		want int
	}{
		// Centers with x+y+1 < 8.
		{ModeDefault, 28},
		// Squares whose interior meets the triangle: x+y < 8.
		{ModeOverConservative, 36},
		// Squares strictly inside: x,y >= 1 and x+y+2 < 8.
		{ModeUnderConservative, 10},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			if got := len(collect(tt.mode, lower, res, math.Vec2{})); got != tt.want {
				t.Errorf("covered %d texels, want %d", got, tt.want)
			}
		})
	}
}

func TestRasterizeWindingIndependent(t *testing.T) {
	p0, p1, p2 := math.Vec2{X: 0.1, Y: 0.2}, math.Vec2{X: 0.9, Y: 0.3}, math.Vec2{X: 0.4, Y: 0.8}
	ccw := math.NewTriangle(p0, p1, p2)
	cw := math.NewTriangle(p0, p2, p1)
	if ccw.Winding == cw.Winding {
		t.Fatal("test triangles share a winding")
	}

	res := math.Int2{X: 16, Y: 16}
	a := collect(ModeDefault, ccw, res, math.Vec2{})
	b := collect(ModeDefault, cw, res, math.Vec2{})
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("covered %d and %d texels", len(a), len(b))
	}
	for p, bcA := range a {
		bcB, ok := b[p]
		if !ok {
			t.Fatalf("texel %v missing for the other winding", p)
		}
		// cw swaps P1 and P2.
		if !near(bcA.X, bcB.X) || !near(bcA.Y, bcB.Z) || !near(bcA.Z, bcB.Y) {
			t.Errorf("texel %v: bc %v vs %v", p, bcA, bcB)
		}
	}
}

func TestBarycentricsReconstructCenter(t *testing.T) {
	tri := math.NewTriangle(math.Vec2{X: 0.05, Y: 0.1}, math.Vec2{X: 0.7, Y: 0.2}, math.Vec2{X: 0.3, Y: 0.9})
	res := math.Int2{X: 10, Y: 10}
	for _, tr := range []math.Triangle{tri, math.NewTriangle(tri.P0, tri.P2, tri.P1)} {
		for p, bc := range collect(ModeDefault, tr, res, math.Vec2{}) {
			if !near(bc.X+bc.Y+bc.Z, 1) {
				t.Errorf("texel %v: weights sum to %v", p, bc.X+bc.Y+bc.Z)
			}
			rf := res.Vec2()
			x := bc.X*tr.P0.X*rf.X + bc.Y*tr.P1.X*rf.X + bc.Z*tr.P2.X*rf.X
			y := bc.X*tr.P0.Y*rf.Y + bc.Y*tr.P1.Y*rf.Y + bc.Z*tr.P2.Y*rf.Y
			if !near(x, float32(p.X)+0.5) || !near(y, float32(p.Y)+0.5) {
				t.Errorf("texel %v: reconstructed center (%v, %v)", p, x, y)
			}
		}
	}
}

func TestRasterizeOffset(t *testing.T) {
	tri := math.NewTriangle(math.Vec2{X: 0, Y: 0}, math.Vec2{X: 1, Y: 0}, math.Vec2{X: 0, Y: 1})
	got := collect(ModeOverConservative, tri, math.Int2{X: 4, Y: 4}, math.Vec2{X: -0.5, Y: -0.5})
	if _, ok := got[math.Int2{X: -1, Y: -1}]; !ok {
		t.Error("offset raster did not reach texel (-1,-1)")
	}
	if _, ok := got[math.Int2{X: 3, Y: 3}]; ok {
		t.Error("offset raster covered texel (3,3) beyond the hypotenuse")
	}
}

func TestRasterizeDegenerate(t *testing.T) {
	line := math.NewTriangle(math.Vec2{X: 0.1, Y: 0.1}, math.Vec2{X: 0.5, Y: 0.5}, math.Vec2{X: 0.9, Y: 0.9})
	if !line.IsDegenerate() {
		t.Fatal("expected a degenerate triangle")
	}
	got := collect(ModeOverConservative, line, math.Int2{X: 10, Y: 10}, math.Vec2{})
	for i := int32(1); i < 9; i++ {
		if _, ok := got[math.Int2{X: i, Y: i}]; !ok {
			t.Errorf("diagonal texel %d not covered", i)
		}
	}
}

func TestRasterizeParallelMatchesSerial(t *testing.T) {
	tri := math.NewTriangle(math.Vec2{X: 0.02, Y: 0.03}, math.Vec2{X: 0.97, Y: 0.1}, math.Vec2{X: 0.5, Y: 0.95})
	res := math.Int2{X: 64, Y: 64}
	want := collect(ModeOverConservative, tri, res, math.Vec2{X: -0.5, Y: -0.5})

	var mu sync.Mutex
	got := make(map[math.Int2]bool)
	err := RasterizeParallel(context.Background(), ModeOverConservative, tri, res, math.Vec2{X: -0.5, Y: -0.5},
		func(p math.Int2, _ math.Vec3) {
			mu.Lock()
			got[p] = true
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("RasterizeParallel: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("parallel covered %d texels, serial %d", len(got), len(want))
	}
	for p := range want {
		if !got[p] {
			t.Errorf("texel %v missing from parallel raster", p)
		}
	}
}

func TestRasterizeParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tri := math.NewTriangle(math.Vec2{X: 0, Y: 0}, math.Vec2{X: 1, Y: 0}, math.Vec2{X: 0, Y: 1})
	err := RasterizeParallel(ctx, ModeDefault, tri, math.Int2{X: 8, Y: 8}, math.Vec2{}, func(math.Int2, math.Vec3) {})
	if err != context.Canceled {
		t.Errorf("RasterizeParallel() error = %v, want context.Canceled", err)
	}
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}
