package bake

import (
	"github.com/Faultbox/omm-baker/internal/diag"
	"github.com/Faultbox/omm-baker/internal/texture"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

func validOpacityState(s omm.OpacityState) bool {
	return s <= omm.UnknownOpaque
}

// Validate checks in against tex before any work is done.
func Validate(in *omm.BakeInput, tex *texture.Texture, r diag.Reporter) error {
	if tex == nil {
		return r.InvalidArg("texture is not set")
	}
	if in.AlphaMode == omm.AlphaBlend {
		return r.NotImplemented("alpha mode Blend is not supported by the CPU baker")
	}
	if in.AlphaMode != omm.AlphaTest {
		return r.InvalidArg("alphaMode (%d) is not valid", in.AlphaMode)
	}
	if in.Sampler.AddressMode > omm.AddressMirrorOnce {
		return r.InvalidArg("runtimeSamplerDesc.addressingMode (%d) is not valid", in.Sampler.AddressMode)
	}
	if in.Sampler.Filter > omm.FilterLinear {
		return r.InvalidArg("runtimeSamplerDesc.filter (%d) is not valid", in.Sampler.Filter)
	}

	if in.IndexFormat != omm.Index16 && in.IndexFormat != omm.Index32 {
		return r.InvalidArg("indexFormat (%d) is not valid", in.IndexFormat)
	}
	if in.IndexCount == 0 {
		return r.InvalidArg("indexCount must be non-zero")
	}
	if in.IndexCount%3 != 0 {
		return r.InvalidArg("indexCount (%d) must be a multiple of 3", in.IndexCount)
	}
	if need := int(in.IndexCount) * in.IndexFormat.Size(); len(in.Indices) < need {
		return r.InvalidArg("indexBuffer has %d bytes, indexCount (%d) needs %d", len(in.Indices), in.IndexCount, need)
	}

	if in.TexCoordFormat.Size() == 0 {
		return r.InvalidArg("texCoordFormat (%d) is not valid", in.TexCoordFormat)
	}
	if len(in.TexCoords) == 0 {
		return r.InvalidArg("texCoords is not set")
	}
	if in.TexCoordStride != 0 && in.TexCoordStride < in.TexCoordFormat.Size() {
		return r.InvalidArg("texCoordStrideInBytes (%d) is smaller than the texcoord size (%d)", in.TexCoordStride, in.TexCoordFormat.Size())
	}
	g := newGeometry(in)
	maxIndex := g.maxIndex()
	if need := uint64(maxIndex)*uint64(g.stride) + uint64(in.TexCoordFormat.Size()); uint64(len(in.TexCoords)) < need {
		return r.InvalidArg("texCoords has %d bytes, index %d needs %d", len(in.TexCoords), maxIndex, need)
	}

	if in.MaxSubdivisionLevel > omm.MaxSubdivisionLevel {
		return r.InvalidArg("maxSubdivisionLevel (%d) is greater than maximum supported (%d)", in.MaxSubdivisionLevel, omm.MaxSubdivisionLevel)
	}
	numTris := in.TriangleCount()
	if len(in.SubdivisionLevels) > 0 {
		if len(in.SubdivisionLevels) < numTris {
			return r.InvalidArg("subdivisionLevels has %d entries, expected %d", len(in.SubdivisionLevels), numTris)
		}
		for i, lvl := range in.SubdivisionLevels[:numTris] {
			if lvl > omm.SubdivisionLevelUseGlobal {
				return r.InvalidArg("subdivisionLevels[%d] (%d) is not valid", i, lvl)
			}
		}
	}

	if len(in.Formats) > 0 {
		if len(in.Formats) < numTris {
			return r.InvalidArg("formats has %d entries, expected %d", len(in.Formats), numTris)
		}
		for i, f := range in.Formats[:numTris] {
			if f != omm.FormatInvalid && !f.Valid() {
				return r.InvalidArg("formats[%d] (%d) is not valid", i, f)
			}
			if f == omm.FormatInvalid && !in.Format.Valid() {
				return r.InvalidArg("formats[%d] defers to format, which is not valid (%d)", i, in.Format)
			}
		}
	} else if !in.Format.Valid() {
		return r.InvalidArg("format (%d) is not valid", in.Format)
	}

	if in.UnknownStatePromotion > omm.PromoteForceTransparent {
		return r.InvalidArg("unknownStatePromotion (%d) is not valid", in.UnknownStatePromotion)
	}
	if !validOpacityState(in.AlphaCutoffLessEqual) || !validOpacityState(in.AlphaCutoffGreater) {
		return r.InvalidArg("alphaCutoffLessEqual (%v) or alphaCutoffGreater (%v) is not valid", in.AlphaCutoffLessEqual, in.AlphaCutoffGreater)
	}
	if in.RejectionThreshold < 0 || in.RejectionThreshold > 1 {
		return r.InvalidArg("rejectionThreshold (%f) must be in [0, 1]", in.RejectionThreshold)
	}
	if in.NearDuplicateThreshold < 0 || in.NearDuplicateThreshold > 1 {
		return r.InvalidArg("nearDuplicateThreshold (%f) must be in [0, 1]", in.NearDuplicateThreshold)
	}

	if cutoff, ok := tex.AlphaCutoff(); ok && cutoff != in.AlphaCutoff {
		return r.InvalidArg("Texture object alpha cutoff threshold (%f) is different from alpha cutoff threshold in bake input (%f)", cutoff, in.AlphaCutoff)
	}
	return nil
}
