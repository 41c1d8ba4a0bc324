package texture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	stdmath "math"

	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

type payloadHeader struct {
	Tiling      int32
	AlphaCutoff float32
	MipCount    uint32
}

type mipHeader struct {
	Width, Height uint32
	NumElements   uint64
}

// Encode writes the texture in its tiled layout, so decoding needs no retiling.
func (t *Texture) Encode(w io.Writer) error {
	hdr := payloadHeader{Tiling: int32(t.tiling), AlphaCutoff: t.alphaCutoff, MipCount: uint32(len(t.mips))}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("writing texture header: %w", err)
	}
	for i := range t.mips {
		m := &t.mips[i]
		mh := mipHeader{Width: uint32(m.size.X), Height: uint32(m.size.Y), NumElements: uint64(m.numElements)}
		if err := binary.Write(w, binary.LittleEndian, &mh); err != nil {
			return fmt.Errorf("writing mip %d header: %w", i, err)
		}
		buf := make([]byte, 4*len(m.data))
		for j, v := range m.data {
			binary.LittleEndian.PutUint32(buf[j*4:], stdmath.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("writing mip %d data: %w", i, err)
		}
	}
	return nil
}

// Decode reads a texture written by Encode. Mip payloads are checked against
// the bytes left in r before anything is allocated for them.
func Decode(r *bytes.Reader, alloc omm.Allocator) (*Texture, error) {
	var hdr payloadHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading texture header: %v", omm.ErrInvalidArgument, err)
	}
	if hdr.Tiling != int32(TilingLinear) && hdr.Tiling != int32(TilingMortonZ) {
		return nil, fmt.Errorf("%w: unknown tiling mode %d", omm.ErrInvalidArgument, hdr.Tiling)
	}
	if hdr.MipCount == 0 || hdr.MipCount > 32 {
		return nil, fmt.Errorf("%w: invalid mip count %d", omm.ErrInvalidArgument, hdr.MipCount)
	}
	tiling := TilingMode(hdr.Tiling)

	sizes := make([]math.Int2, hdr.MipCount)
	var payloads [][]byte
	for i := range sizes {
		var mh mipHeader
		if err := binary.Read(r, binary.LittleEndian, &mh); err != nil {
			return nil, fmt.Errorf("%w: reading mip %d header: %v", omm.ErrInvalidArgument, i, err)
		}
		if mh.Width == 0 || mh.Height == 0 || mh.Width > omm.MaxTextureDimension || mh.Height > omm.MaxTextureDimension {
			return nil, fmt.Errorf("%w: mip %d has invalid size %dx%d", omm.ErrInvalidArgument, i, mh.Width, mh.Height)
		}
		sizes[i] = math.Int2{X: int32(mh.Width), Y: int32(mh.Height)}
		if want := uint64(elementCount(tiling, sizes[i])); mh.NumElements != want {
			return nil, fmt.Errorf("%w: mip %d claims %d elements, %dx%d holds %d", omm.ErrInvalidArgument, i, mh.NumElements, mh.Width, mh.Height, want)
		}
		if left := uint64(r.Len()); 4*mh.NumElements > left {
			return nil, fmt.Errorf("%w: mip %d needs %d bytes, %d left", omm.ErrInvalidArgument, i, 4*mh.NumElements, left)
		}
		buf := make([]byte, 4*mh.NumElements)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: reading mip %d data: %v", omm.ErrInvalidArgument, i, err)
		}
		payloads = append(payloads, buf)
	}

	t := newTexture(tiling, sizes, alloc)
	for i := range t.mips {
		m := &t.mips[i]
		for j := range m.data {
			m.data[j] = stdmath.Float32frombits(binary.LittleEndian.Uint32(payloads[i][j*4:]))
		}
	}
	if hdr.AlphaCutoff >= 0 {
		t.setAlphaCutoff(hdr.AlphaCutoff)
	}
	return t, nil
}
