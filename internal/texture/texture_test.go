package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

func fp32Desc(w, h uint32, texel func(x, y uint32) float32) omm.TextureDesc {
	values := make([]float32, w*h)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			values[x+y*w] = texel(x, y)
		}
	}
	desc := omm.DefaultTextureDesc()
	desc.Mips = []omm.TextureMipDesc{{Width: w, Height: h, Data: omm.Float32Bytes(values)}}
	return desc
}

func gradient(x, y uint32) float32 { return float32(x+y*17) / 1000 }

func TestTexCoord(t *testing.T) {
	size := math.Int2{X: 4, Y: 4}
	tests := []struct {
		mode omm.TextureAddressMode
		in   int32
		want int32
	}{
		{omm.AddressWrap, -1, 3},
		{omm.AddressWrap, 5, 1},
		{omm.AddressMirror, -1, 0},
		{omm.AddressMirror, 4, 3},
		{omm.AddressMirror, 9, 1},
		{omm.AddressClamp, -3, 0},
		{omm.AddressClamp, 7, 3},
		{omm.AddressBorder, 2, 2},
		{omm.AddressBorder, -1, TexCoordBorder},
		{omm.AddressBorder, 4, TexCoordBorder},
		{omm.AddressMirrorOnce, -2, 1},
		{omm.AddressMirrorOnce, 6, 3},
	}
	for _, tt := range tests {
		got := TexCoord(tt.mode, math.Int2{X: tt.in, Y: tt.in}, size)
		if got.X != tt.want || got.Y != tt.want {
			t.Errorf("TexCoord(%v, %d) = %v, want %d", tt.mode, tt.in, got, tt.want)
		}
	}
}

func TestTexCoordWrapNonPow2(t *testing.T) {
	got := TexCoord(omm.AddressWrap, math.Int2{X: -1, Y: 7}, math.Int2{X: 3, Y: 5})
	if got.X != 2 || got.Y != 2 {
		t.Errorf("TexCoord(Wrap) = %v, want {2 2}", got)
	}
}

func TestGatherTexCoord4(t *testing.T) {
	got := GatherTexCoord4(omm.AddressClamp, math.Int2{X: 3, Y: 1}, math.Int2{X: 4, Y: 4})
	want := [4]math.Int2{
		I0x0: {X: 3, Y: 1},
		I1x0: {X: 3, Y: 1},
		I0x1: {X: 3, Y: 2},
		I1x1: {X: 3, Y: 2},
	}
	if got != want {
		t.Errorf("GatherTexCoord4 = %v, want %v", got, want)
	}
	border := GatherTexCoord4(omm.AddressBorder, math.Int2{X: -1, Y: 0}, math.Int2{X: 4, Y: 4})
	if !IsBorder(border[I0x0]) || IsBorder(border[I1x0]) {
		t.Errorf("GatherTexCoord4(Border) = %v", border)
	}
}

func TestMortonIndex(t *testing.T) {
	tests := []struct {
		x, y uint32
		want uint64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, 2},
		{1, 1, 3},
		{2, 0, 4},
		{3, 3, 15},
		{0, 4, 32},
	}
	for _, tt := range tests {
		if got := MortonIndex(tt.x, tt.y); got != tt.want {
			t.Errorf("MortonIndex(%d, %d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestTilingsLoadSameTexels(t *testing.T) {
	desc := fp32Desc(7, 5, gradient)
	morton, err := New(desc, omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer morton.Free()

	desc.Flags = omm.TextureDisableZOrder
	linear, err := New(desc, omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer linear.Free()

	if morton.Tiling() != TilingMortonZ || linear.Tiling() != TilingLinear {
		t.Fatalf("tilings = %v, %v", morton.Tiling(), linear.Tiling())
	}
	for y := int32(0); y < 5; y++ {
		for x := int32(0); x < 7; x++ {
			c := math.Int2{X: x, Y: y}
			want := gradient(uint32(x), uint32(y))
			if got := morton.Load(c, 0); got != want {
				t.Errorf("morton.Load(%v) = %v, want %v", c, got, want)
			}
			if got := linear.Load(c, 0); got != want {
				t.Errorf("linear.Load(%v) = %v, want %v", c, got, want)
			}
		}
	}
	if got := morton.Load(math.Int2{X: TexCoordBorder, Y: 0}, 0); got != 0 {
		t.Errorf("Load(border) = %v, want 0", got)
	}
}

func TestBilinearAtTexelCenters(t *testing.T) {
	tex, err := New(fp32Desc(4, 4, gradient), omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tex.Free()

	for y := uint32(0); y < 4; y++ {
		for x := uint32(0); x < 4; x++ {
			uv := math.Vec2{X: (float32(x) + 0.5) / 4, Y: (float32(y) + 0.5) / 4}
			got := tex.Bilinear(omm.AddressClamp, uv, 0)
			want := gradient(x, y)
			if d := got - want; d > 1e-6 || d < -1e-6 {
				t.Errorf("Bilinear(%v) = %v, want %v", uv, got, want)
			}
		}
	}

	// Halfway between texels (0,0) and (1,0).
	got := tex.Bilinear(omm.AddressClamp, math.Vec2{X: 0.25, Y: 0.125}, 0)
	want := (gradient(0, 0) + gradient(1, 0)) / 2
	if d := got - want; d > 1e-6 || d < -1e-6 {
		t.Errorf("Bilinear midpoint = %v, want %v", got, want)
	}
}

func TestUNORM8AndRowPitch(t *testing.T) {
	desc := omm.TextureDesc{
		Format:      omm.TextureUNORM8,
		AlphaCutoff: -1,
		Mips: []omm.TextureMipDesc{{
			Width:    2,
			Height:   2,
			RowPitch: 4,
			Data:     []byte{0, 255, 9, 9, 51, 102},
		}},
	}
	tex, err := New(desc, omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tex.Free()

	want := map[math.Int2]float32{
		{X: 0, Y: 0}: 0,
		{X: 1, Y: 0}: 1,
		{X: 0, Y: 1}: 0.2,
		{X: 1, Y: 1}: 0.4,
	}
	for c, w := range want {
		if got := tex.Load(c, 0); got-w > 1e-6 || w-got > 1e-6 {
			t.Errorf("Load(%v) = %v, want %v", c, got, w)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := fp32Desc(2, 2, gradient)
	tests := []struct {
		name   string
		mutate func(d *omm.TextureDesc)
	}{
		{"no mips", func(d *omm.TextureDesc) { d.Mips = nil }},
		{"nil data", func(d *omm.TextureDesc) { d.Mips[0].Data = nil }},
		{"zero width", func(d *omm.TextureDesc) { d.Mips[0].Width = 0 }},
		{"too large", func(d *omm.TextureDesc) { d.Mips[0].Height = omm.MaxTextureDimension + 1 }},
		{"short data", func(d *omm.TextureDesc) { d.Mips[0].Data = d.Mips[0].Data[:12] }},
		{"small pitch", func(d *omm.TextureDesc) { d.Mips[0].RowPitch = 4 }},
		{"bad format", func(d *omm.TextureDesc) { d.Format = omm.TextureFormat(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			d.Mips = append([]omm.TextureMipDesc(nil), valid.Mips...)
			tt.mutate(&d)
			if _, err := New(d, omm.SystemAllocator{}); !errors.Is(err, omm.ErrInvalidArgument) {
				t.Errorf("New() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
	if err := Validate(valid); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
}

func TestCountAbove(t *testing.T) {
	desc := fp32Desc(4, 4, func(x, y uint32) float32 {
		if x >= 2 {
			return 1
		}
		return 0
	})
	desc.AlphaCutoff = 0.5
	tex, err := New(desc, omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tex.Free()

	if c, ok := tex.AlphaCutoff(); !ok || c != 0.5 {
		t.Fatalf("AlphaCutoff() = %v, %v", c, ok)
	}

	tests := []struct {
		x0, y0, x1, y1 int32
		above, area    uint64
	}{
		{0, 0, 4, 4, 8, 16},
		{0, 0, 2, 4, 0, 8},
		{2, 1, 4, 3, 4, 4},
		{-5, -5, 10, 1, 2, 4},
		{3, 3, 3, 4, 0, 0},
	}
	for _, tt := range tests {
		above, area := tex.CountAbove(0, tt.x0, tt.y0, tt.x1, tt.y1)
		if above != tt.above || area != tt.area {
			t.Errorf("CountAbove(%d,%d,%d,%d) = %d/%d, want %d/%d",
				tt.x0, tt.y0, tt.x1, tt.y1, above, area, tt.above, tt.area)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	desc := fp32Desc(5, 3, gradient)
	desc.AlphaCutoff = 0.02
	tex, err := New(desc, omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer tex.Free()

	var buf bytes.Buffer
	if err := tex.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded := append([]byte(nil), buf.Bytes()...)

	got, err := Decode(bytes.NewReader(encoded), omm.SystemAllocator{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	defer got.Free()

	if got.Tiling() != tex.Tiling() || got.Size(0) != tex.Size(0) {
		t.Fatalf("decoded layout = %v %v", got.Tiling(), got.Size(0))
	}
	if c, ok := got.AlphaCutoff(); !ok || c != 0.02 {
		t.Errorf("decoded AlphaCutoff() = %v, %v", c, ok)
	}
	for y := int32(0); y < 3; y++ {
		for x := int32(0); x < 5; x++ {
			c := math.Int2{X: x, Y: y}
			if got.Load(c, 0) != tex.Load(c, 0) {
				t.Errorf("Load(%v) = %v, want %v", c, got.Load(c, 0), tex.Load(c, 0))
			}
		}
	}

	if _, err := Decode(bytes.NewReader(encoded[:len(encoded)-4]), omm.SystemAllocator{}); !errors.Is(err, omm.ErrInvalidArgument) {
		t.Errorf("Decode(truncated) error = %v, want ErrInvalidArgument", err)
	}
}

func TestDecodeRejectsBadMipHeaders(t *testing.T) {
	tests := []struct {
		name   string
		mip    mipHeader
		reason string
	}{
		{"larger than the payload", mipHeader{Width: 65536, Height: 65536, NumElements: 1 << 32}, "left"},
		{"count off the tiling", mipHeader{Width: 5, Height: 3, NumElements: 16}, "holds 15"},
		{"zero width", mipHeader{Width: 0, Height: 3}, "invalid size"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, payloadHeader{Tiling: int32(TilingLinear), AlphaCutoff: -1, MipCount: 1})
		binary.Write(&buf, binary.LittleEndian, tt.mip)
		buf.Write(make([]byte, 64))

		_, err := Decode(bytes.NewReader(buf.Bytes()), omm.SystemAllocator{})
		if !errors.Is(err, omm.ErrInvalidArgument) || !strings.Contains(err.Error(), tt.reason) {
			t.Errorf("%s: Decode() error = %v, want ErrInvalidArgument containing %q", tt.name, err, tt.reason)
		}
	}
}
