package omm

import (
	"encoding/binary"
	"math"
)

// MaxSubdivisionLevel is the deepest level a micromap may use.
const MaxSubdivisionLevel = 12

// SubdivisionLevelUseGlobal in BakeInput.SubdivisionLevels defers to the
// dynamic or global level. Values above it are reserved.
const SubdivisionLevelUseGlobal = 13

// MaxTextureDimension bounds each texture axis.
const MaxTextureDimension = 65536

// DefaultMaxWorkloadSize is the texel count above which bakes are reported
// as unusually large, and the cap used by workload validation when
// BakeInput.MaxWorkloadSize is 0.
const DefaultMaxWorkloadSize = 1 << 27

// TextureMipDesc is one mip level of source texel data.
type TextureMipDesc struct {
	Width, Height uint32
	// RowPitch is the source row stride in bytes; 0 means tightly packed.
	RowPitch uint32
	Data     []byte
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Format TextureFormat
	Flags  TextureFlags
	Mips   []TextureMipDesc
	// AlphaCutoff enables summed-area-table acceleration when >= 0. Bakes
	// against the texture must then use exactly the same cutoff.
	AlphaCutoff float32
}

// DefaultTextureDesc returns a texture description with acceleration disabled.
func DefaultTextureDesc() TextureDesc {
	return TextureDesc{Format: TextureFP32, AlphaCutoff: -1}
}

// SamplerDesc mirrors the sampler used at runtime.
type SamplerDesc struct {
	AddressMode TextureAddressMode
	Filter      TextureFilterMode
	BorderAlpha float32
}

// BakeInput describes one geometry batch to bake.
type BakeInput struct {
	Flags   BakeFlags
	Texture Handle
	Sampler SamplerDesc

	AlphaMode AlphaMode

	TexCoordFormat TexCoordFormat
	TexCoords      []byte
	// TexCoordStride is the byte stride between texcoords; 0 means packed.
	TexCoordStride uint32

	IndexFormat IndexFormat
	Indices     []byte
	IndexCount  uint32

	// DynamicSubdivisionScale targets micro-triangles covering about
	// scale*scale texels. Values <= 0 disable the heuristic.
	DynamicSubdivisionScale float32
	// RejectionThreshold discards micromaps whose known-state ratio is lower.
	RejectionThreshold float32

	AlphaCutoff          float32
	AlphaCutoffLessEqual OpacityState
	AlphaCutoffGreater   OpacityState

	Format  Format
	Formats []Format

	UnknownStatePromotion UnknownStatePromotion

	MaxSubdivisionLevel uint8
	SubdivisionLevels   []uint8

	// MaxWorkloadSize caps the classified texel count when workload
	// validation is enabled; 0 uses DefaultMaxWorkloadSize.
	MaxWorkloadSize uint64
	// NearDuplicateThreshold is the fraction of micro-triangles that may
	// differ between merged near-duplicate micromaps.
	NearDuplicateThreshold float32
}

// DefaultBakeInput returns the documented defaults.
func DefaultBakeInput() BakeInput {
	return BakeInput{
		Sampler:                 SamplerDesc{AddressMode: AddressClamp, Filter: FilterLinear},
		AlphaMode:               AlphaTest,
		TexCoordFormat:          UV32Float,
		IndexFormat:             Index32,
		DynamicSubdivisionScale: 2,
		RejectionThreshold:      0,
		AlphaCutoff:             0.5,
		AlphaCutoffLessEqual:    Transparent,
		AlphaCutoffGreater:      Opaque,
		Format:                  Format4State,
		UnknownStatePromotion:   PromoteForceOpaque,
		MaxSubdivisionLevel:     8,
		NearDuplicateThreshold:  0.1,
	}
}

// TriangleCount returns IndexCount / 3.
func (in *BakeInput) TriangleCount() int {
	return int(in.IndexCount / 3)
}

// OpacityMicromapDesc locates one micromap in the array data.
type OpacityMicromapDesc struct {
	Offset           uint32
	SubdivisionLevel uint16
	Format           Format
}

// UsageCount is one histogram row.
type UsageCount struct {
	Count            uint32
	SubdivisionLevel uint16
	Format           Format
}

// BakeResult holds the buffers produced by a bake.
type BakeResult struct {
	ArrayData          []byte
	DescArray          []OpacityMicromapDesc
	DescArrayHistogram []UsageCount
	IndexBuffer        []byte
	IndexFormat        IndexFormat
	IndexHistogram     []UsageCount
}

// IndexCount returns the number of entries in IndexBuffer.
func (r *BakeResult) IndexCount() int {
	return len(r.IndexBuffer) / r.IndexFormat.Size()
}

// Index decodes entry i of the index buffer.
func (r *BakeResult) Index(i int) int32 {
	if r.IndexFormat == Index16 {
		return int32(int16(binary.LittleEndian.Uint16(r.IndexBuffer[i*2:])))
	}
	return int32(binary.LittleEndian.Uint32(r.IndexBuffer[i*4:]))
}

// Float32Bytes encodes values as little-endian bytes, the layout expected by
// FP32 textures and UV32Float texcoords.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Uint32Bytes encodes indices as little-endian bytes.
func Uint32Bytes(values []uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// Uint16Bytes encodes indices or UV16 texcoords as little-endian bytes.
func Uint16Bytes(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}
