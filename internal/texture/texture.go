// Package texture stores alpha textures in a cache-friendly tiled layout and
// implements the sampler addressing used by the classification kernels.
package texture

import (
	"encoding/binary"
	"fmt"
	stdmath "math"
	"unsafe"

	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// TilingMode is the texel memory layout.
type TilingMode uint8

const (
	TilingLinear TilingMode = iota
	TilingMortonZ
)

func (m TilingMode) String() string {
	if m == TilingLinear {
		return "Linear"
	}
	return "MortonZ"
}

// alignment of each mip inside the texel block.
const alignment = 64

type mip struct {
	size        math.Int2
	rcpSize     math.Vec2
	offset      int // byte offset into Texture.store
	numElements int
	data        []float32
	// sat is a (w+1)*(h+1) summed-area table of texels above the cutoff.
	sat []uint64
}

// Texture is immutable after creation and safe for concurrent reads.
type Texture struct {
	alloc       omm.Allocator
	tiling      TilingMode
	mips        []mip
	store       []byte
	alphaCutoff float32
}

// Validate checks a texture description without allocating.
func Validate(desc omm.TextureDesc) error {
	if desc.Format != omm.TextureUNORM8 && desc.Format != omm.TextureFP32 {
		return fmt.Errorf("%w: texture format %d is not supported", omm.ErrInvalidArgument, desc.Format)
	}
	if len(desc.Mips) == 0 {
		return fmt.Errorf("%w: mip count must be non-zero", omm.ErrInvalidArgument)
	}
	texelSize := desc.Format.TexelSize()
	for i, m := range desc.Mips {
		if m.Data == nil {
			return fmt.Errorf("%w: mip %d has no texture data", omm.ErrInvalidArgument, i)
		}
		if m.Width == 0 || m.Height == 0 {
			return fmt.Errorf("%w: mip %d has zero size (%dx%d)", omm.ErrInvalidArgument, i, m.Width, m.Height)
		}
		if m.Width > omm.MaxTextureDimension || m.Height > omm.MaxTextureDimension {
			return fmt.Errorf("%w: mip %d size %dx%d exceeds %d", omm.ErrInvalidArgument, i, m.Width, m.Height, omm.MaxTextureDimension)
		}
		pitch := rowPitch(m, texelSize)
		if pitch < int(m.Width)*texelSize {
			return fmt.Errorf("%w: mip %d row pitch %d is smaller than a row", omm.ErrInvalidArgument, i, m.RowPitch)
		}
		need := pitch*(int(m.Height)-1) + int(m.Width)*texelSize
		if len(m.Data) < need {
			return fmt.Errorf("%w: mip %d has %d bytes, need %d", omm.ErrInvalidArgument, i, len(m.Data), need)
		}
	}
	return nil
}

func rowPitch(m omm.TextureMipDesc, texelSize int) int {
	if m.RowPitch == 0 {
		return int(m.Width) * texelSize
	}
	return int(m.RowPitch)
}

// New validates desc and copies its texels into allocator-owned storage.
func New(desc omm.TextureDesc, alloc omm.Allocator) (*Texture, error) {
	if err := Validate(desc); err != nil {
		return nil, err
	}

	tiling := TilingMortonZ
	if desc.Flags&omm.TextureDisableZOrder != 0 {
		tiling = TilingLinear
	}

	sizes := make([]math.Int2, len(desc.Mips))
	for i, m := range desc.Mips {
		sizes[i] = math.Int2{X: int32(m.Width), Y: int32(m.Height)}
	}

	t := newTexture(tiling, sizes, alloc)
	texelSize := desc.Format.TexelSize()
	for i, m := range desc.Mips {
		pitch := rowPitch(m, texelSize)
		dst := &t.mips[i]
		for y := int32(0); y < dst.size.Y; y++ {
			row := m.Data[int(y)*pitch:]
			for x := int32(0); x < dst.size.X; x++ {
				var v float32
				if desc.Format == omm.TextureUNORM8 {
					v = float32(row[x]) * (1.0 / 255.0)
				} else {
					v = stdmath.Float32frombits(binary.LittleEndian.Uint32(row[x*4:]))
				}
				dst.data[t.index(math.Int2{X: x, Y: y}, dst.size)] = v
			}
		}
	}

	t.alphaCutoff = -1
	if desc.AlphaCutoff >= 0 {
		t.setAlphaCutoff(desc.AlphaCutoff)
	}
	return t, nil
}

// newTexture lays out zeroed mip storage.
func newTexture(tiling TilingMode, sizes []math.Int2, alloc omm.Allocator) *Texture {
	t := &Texture{alloc: alloc, tiling: tiling, mips: make([]mip, len(sizes)), alphaCutoff: -1}

	total := 0
	for i, size := range sizes {
		m := &t.mips[i]
		m.size = size
		m.rcpSize = math.Vec2{X: 1 / float32(size.X), Y: 1 / float32(size.Y)}
		m.offset = total
		m.numElements = elementCount(tiling, size)
		total = int(math.Align(uint64(total+4*m.numElements), alignment))
	}

	t.store = alloc.Alloc(total, alignment)
	clear(t.store)
	for i := range t.mips {
		m := &t.mips[i]
		if m.numElements > 0 {
			m.data = unsafe.Slice((*float32)(unsafe.Pointer(&t.store[m.offset])), m.numElements)
		}
	}
	return t
}

// elementCount is the number of texels a mip of size stores under tiling.
func elementCount(tiling TilingMode, size math.Int2) int {
	if tiling == TilingLinear {
		return int(size.X) * int(size.Y)
	}
	dim := int(math.NextPow2(uint32(max(size.X, size.Y))))
	return dim * dim
}

func (t *Texture) setAlphaCutoff(cutoff float32) {
	t.alphaCutoff = cutoff
	for i := range t.mips {
		m := &t.mips[i]
		w, h := int(m.size.X), int(m.size.Y)
		m.sat = make([]uint64, (w+1)*(h+1))
		for y := 0; y < h; y++ {
			var rowSum uint64
			for x := 0; x < w; x++ {
				if cutoff < m.data[t.index(math.Int2{X: int32(x), Y: int32(y)}, m.size)] {
					rowSum++
				}
				m.sat[(y+1)*(w+1)+x+1] = m.sat[y*(w+1)+x+1] + rowSum
			}
		}
	}
}

// index maps a texel coordinate to its element index.
func (t *Texture) index(c, size math.Int2) int {
	if t.tiling == TilingLinear {
		return int(c.X) + int(c.Y)*int(size.X)
	}
	return int(MortonIndex(uint32(c.X), uint32(c.Y)))
}

// MortonIndex interleaves x into the even bits and y into the odd bits.
func MortonIndex(x, y uint32) uint64 {
	return spread(x) | spread(y)<<1
}

func spread(v uint32) uint64 {
	x := uint64(v)
	x = (x | (x << 16)) & 0x0000FFFF0000FFFF
	x = (x | (x << 8)) & 0x00FF00FF00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F0F0F0F0F
	x = (x | (x << 2)) & 0x3333333333333333
	x = (x | (x << 1)) & 0x5555555555555555
	return x
}

// Tiling returns the memory layout.
func (t *Texture) Tiling() TilingMode { return t.tiling }

// MipCount returns the number of mips.
func (t *Texture) MipCount() int { return len(t.mips) }

// Size returns the dimensions of a mip.
func (t *Texture) Size(mip int) math.Int2 { return t.mips[mip].size }

// RcpSize returns 1/size of a mip.
func (t *Texture) RcpSize(mip int) math.Vec2 { return t.mips[mip].rcpSize }

// AlphaCutoff returns the cutoff baked into the summed-area tables.
func (t *Texture) AlphaCutoff() (float32, bool) {
	return t.alphaCutoff, t.alphaCutoff >= 0
}

// Load returns the texel at c. Sentinel or out-of-range coordinates read 0.
func (t *Texture) Load(c math.Int2, mip int) float32 {
	m := &t.mips[mip]
	if c.X < 0 || c.Y < 0 || c.X >= m.size.X || c.Y >= m.size.Y {
		return 0
	}
	return m.data[t.index(c, m.size)]
}

// Fetcher returns a loader for mip specialized to the texture's tiling.
// Coordinates must be in range; callers resolve sentinels first.
func (t *Texture) Fetcher(mip int) func(c math.Int2) float32 {
	m := &t.mips[mip]
	data, width := m.data, int(m.size.X)
	if t.tiling == TilingLinear {
		return func(c math.Int2) float32 {
			return data[int(c.X)+int(c.Y)*width]
		}
	}
	return func(c math.Int2) float32 {
		return data[MortonIndex(uint32(c.X), uint32(c.Y))]
	}
}

// Bilinear samples the texture at normalized uv with the given addressing.
func (t *Texture) Bilinear(mode omm.TextureAddressMode, uv math.Vec2, mip int) float32 {
	size := t.mips[mip].size
	pixel := uv.Mul(size.Vec2()).AddScalar(-0.5)
	floor := pixel.Floor()
	coords := GatherTexCoord4(mode, math.Int2{X: int32(floor.X), Y: int32(floor.Y)}, size)

	a := t.Load(coords[I0x0], mip)
	b := t.Load(coords[I0x1], mip)
	c := t.Load(coords[I1x0], mip)
	d := t.Load(coords[I1x1], mip)

	w := pixel.Sub(floor)
	ac := math.Lerp(a, c, w.X)
	bd := math.Lerp(b, d, w.X)
	return math.Lerp(ac, bd, w.Y)
}

// CountAbove returns how many texels of the half-open rectangle
// [x0,x1) x [y0,y1), clipped to the mip, lie above the alpha cutoff, and the
// clipped texel count. It requires a texture created with an alpha cutoff.
func (t *Texture) CountAbove(mip int, x0, y0, x1, y1 int32) (above, area uint64) {
	m := &t.mips[mip]
	x0, x1 = math.Clamp(x0, 0, m.size.X), math.Clamp(x1, 0, m.size.X)
	y0, y1 = math.Clamp(y0, 0, m.size.Y), math.Clamp(y1, 0, m.size.Y)
	if x1 <= x0 || y1 <= y0 || m.sat == nil {
		return 0, 0
	}
	stride := int(m.size.X) + 1
	at := func(x, y int32) uint64 { return m.sat[int(y)*stride+int(x)] }
	above = at(x1, y1) - at(x0, y1) - at(x1, y0) + at(x0, y0)
	area = uint64(x1-x0) * uint64(y1-y0)
	return above, area
}

// Free returns the texel storage to the allocator.
func (t *Texture) Free() {
	if t.store != nil {
		t.alloc.Free(t.store)
		t.store = nil
	}
	for i := range t.mips {
		t.mips[i].data = nil
		t.mips[i].sat = nil
	}
}
