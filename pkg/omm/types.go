// Package omm defines the data model shared by the opacity micromap baker:
// enums, input and result descriptors, errors and the allocator contract.
package omm

import "fmt"

// OpacityState is the classification of a single micro-triangle.
type OpacityState uint8

const (
	Transparent OpacityState = iota
	Opaque
	UnknownTransparent
	UnknownOpaque
)

// IsUnknown reports whether s is one of the two unknown states.
func (s OpacityState) IsUnknown() bool {
	return s == UnknownTransparent || s == UnknownOpaque
}

// Unknown returns the unknown variant of a known state.
func (s OpacityState) Unknown() OpacityState {
	switch s {
	case Transparent:
		return UnknownTransparent
	case Opaque:
		return UnknownOpaque
	default:
		return s
	}
}

// SpecialIndex returns the index-buffer value meaning "whole primitive is s".
func (s OpacityState) SpecialIndex() SpecialIndex {
	return SpecialIndex(^int32(s))
}

func (s OpacityState) String() string {
	switch s {
	case Transparent:
		return "Transparent"
	case Opaque:
		return "Opaque"
	case UnknownTransparent:
		return "UnknownTransparent"
	case UnknownOpaque:
		return "UnknownOpaque"
	default:
		return fmt.Sprintf("OpacityState(%d)", uint8(s))
	}
}

// SpecialIndex is a negative index-buffer entry.
type SpecialIndex int32

const (
	FullyTransparent        SpecialIndex = -1
	FullyOpaque             SpecialIndex = -2
	FullyUnknownTransparent SpecialIndex = -3
	FullyUnknownOpaque      SpecialIndex = -4
)

// State returns the opacity state encoded by the special index.
func (i SpecialIndex) State() OpacityState {
	return OpacityState(^int32(i))
}

// Format is the micromap encoding.
type Format uint16

const (
	FormatInvalid Format = iota
	// Format2State stores 1 bit per micro-triangle.
	Format2State
	// Format4State stores 2 bits per micro-triangle.
	Format4State
)

// BitsPerState returns the number of bits per micro-triangle.
func (f Format) BitsPerState() uint32 {
	if f == Format2State {
		return 1
	}
	return 2
}

// Valid reports whether f is a concrete format.
func (f Format) Valid() bool {
	return f == Format2State || f == Format4State
}

func (f Format) String() string {
	switch f {
	case Format2State:
		return "OC1_2_State"
	case Format4State:
		return "OC1_4_State"
	default:
		return "INVALID"
	}
}

// UnknownStatePromotion controls how mixed coverage is resolved.
type UnknownStatePromotion uint8

const (
	PromoteNearest UnknownStatePromotion = iota
	PromoteForceOpaque
	PromoteForceTransparent
)

// TexCoordFormat is the encoding of the texcoord buffer.
type TexCoordFormat uint8

const (
	UV16Unorm TexCoordFormat = iota
	UV16Float
	UV32Float
)

// Size returns the byte size of one (u, v) pair.
func (f TexCoordFormat) Size() uint32 {
	switch f {
	case UV16Unorm, UV16Float:
		return 4
	case UV32Float:
		return 8
	default:
		return 0
	}
}

// IndexFormat is the width of index-buffer entries.
type IndexFormat uint8

const (
	Index16 IndexFormat = iota
	Index32
)

// Size returns the byte size of one index.
func (f IndexFormat) Size() int {
	if f == Index16 {
		return 2
	}
	return 4
}

// TextureAddressMode is the sampler addressing mode.
type TextureAddressMode uint8

const (
	AddressWrap TextureAddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
	AddressMirrorOnce
)

func (m TextureAddressMode) String() string {
	switch m {
	case AddressWrap:
		return "Wrap"
	case AddressMirror:
		return "Mirror"
	case AddressClamp:
		return "Clamp"
	case AddressBorder:
		return "Border"
	case AddressMirrorOnce:
		return "MirrorOnce"
	default:
		return fmt.Sprintf("TextureAddressMode(%d)", uint8(m))
	}
}

// TextureFilterMode is the sampler filter.
type TextureFilterMode uint8

const (
	FilterNearest TextureFilterMode = iota
	FilterLinear
)

// AlphaMode is how alpha is consumed at runtime.
type AlphaMode uint8

const (
	AlphaTest AlphaMode = iota
	AlphaBlend
)

// TextureFormat is the source texel encoding.
type TextureFormat uint8

const (
	TextureUNORM8 TextureFormat = iota
	TextureFP32
)

// TexelSize returns the byte size of one source texel.
func (f TextureFormat) TexelSize() int {
	if f == TextureUNORM8 {
		return 1
	}
	return 4
}

// TextureFlags control texture creation.
type TextureFlags uint32

const (
	// TextureDisableZOrder stores texels row-major instead of in Morton order.
	TextureDisableZOrder TextureFlags = 1 << 0
)

// BakeFlags control a CPU bake.
type BakeFlags uint32

const (
	EnableInternalThreads        BakeFlags = 1 << 0
	DisableSpecialIndices        BakeFlags = 1 << 1
	Force32BitIndices            BakeFlags = 1 << 2
	DisableDuplicateDetection    BakeFlags = 1 << 3
	EnableNearDuplicateDetection BakeFlags = 1 << 4
	EnableWorkloadValidation     BakeFlags = 1 << 5
	DisableLevelLineIntersection BakeFlags = 1 << 7
)

// Has reports whether all bits of flag are set.
func (f BakeFlags) Has(flag BakeFlags) bool {
	return f&flag == flag
}

// MessageSeverity classifies diagnostics sent to the message callback.
type MessageSeverity uint8

const (
	SeverityInfo MessageSeverity = iota
	SeverityWarning
	SeverityPerfWarning
	SeverityError
	SeverityFatal
)

// MessageCallback receives diagnostics. A nil callback drops them.
type MessageCallback func(severity MessageSeverity, message string)
