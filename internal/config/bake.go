package config

import (
	"fmt"
	"strings"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

var formats = map[string]omm.Format{
	"2state":      omm.Format2State,
	"4state":      omm.Format4State,
	"oc1_2_state": omm.Format2State,
	"oc1_4_state": omm.Format4State,
}

var filters = map[string]omm.TextureFilterMode{
	"nearest": omm.FilterNearest,
	"linear":  omm.FilterLinear,
}

var addressModes = map[string]omm.TextureAddressMode{
	"wrap":        omm.AddressWrap,
	"mirror":      omm.AddressMirror,
	"clamp":       omm.AddressClamp,
	"border":      omm.AddressBorder,
	"mirror_once": omm.AddressMirrorOnce,
}

var alphaModes = map[string]omm.AlphaMode{
	"test":  omm.AlphaTest,
	"blend": omm.AlphaBlend,
}

var states = map[string]omm.OpacityState{
	"transparent":         omm.Transparent,
	"opaque":              omm.Opaque,
	"unknown_transparent": omm.UnknownTransparent,
	"unknown_opaque":      omm.UnknownOpaque,
}

var promotions = map[string]omm.UnknownStatePromotion{
	"nearest":           omm.PromoteNearest,
	"force_opaque":      omm.PromoteForceOpaque,
	"force_transparent": omm.PromoteForceTransparent,
}

func lookup[T any](table map[string]T, key, field string) (T, error) {
	v, ok := table[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q", field, key)
	}
	return v, nil
}

// ParseFormat parses a micromap format name such as "4state".
func ParseFormat(s string) (omm.Format, error) {
	return lookup(formats, s, "format")
}

// Input converts the settings into a bake input without texture or
// geometry.
func (b BakeConfig) Input() (omm.BakeInput, error) {
	in := omm.DefaultBakeInput()
	var err error
	if in.Format, err = ParseFormat(b.Format); err != nil {
		return in, err
	}
	if in.Sampler.Filter, err = lookup(filters, b.Filter, "filter"); err != nil {
		return in, err
	}
	if in.Sampler.AddressMode, err = lookup(addressModes, b.AddressMode, "address mode"); err != nil {
		return in, err
	}
	if in.AlphaMode, err = lookup(alphaModes, b.AlphaMode, "alpha mode"); err != nil {
		return in, err
	}
	if in.AlphaCutoffLessEqual, err = lookup(states, b.BelowCutoff, "below_cutoff state"); err != nil {
		return in, err
	}
	if in.AlphaCutoffGreater, err = lookup(states, b.AboveCutoff, "above_cutoff state"); err != nil {
		return in, err
	}
	if in.UnknownStatePromotion, err = lookup(promotions, b.Promotion, "promotion"); err != nil {
		return in, err
	}
	if b.MaxSubdivisionLevel < 0 || b.MaxSubdivisionLevel > omm.MaxSubdivisionLevel {
		return in, fmt.Errorf("max_subdivision_level %d is outside [0, %d]", b.MaxSubdivisionLevel, omm.MaxSubdivisionLevel)
	}

	in.Sampler.BorderAlpha = b.BorderAlpha
	in.AlphaCutoff = b.AlphaCutoff
	in.MaxSubdivisionLevel = uint8(b.MaxSubdivisionLevel)
	in.DynamicSubdivisionScale = b.DynamicSubdivisionScale
	in.RejectionThreshold = b.RejectionThreshold
	in.NearDuplicateThreshold = b.NearDuplicateThreshold
	in.MaxWorkloadSize = b.MaxWorkloadSize

	in.Flags = 0
	set := func(on bool, f omm.BakeFlags) {
		if on {
			in.Flags |= f
		}
	}
	set(b.Threads, omm.EnableInternalThreads)
	set(!b.SpecialIndices, omm.DisableSpecialIndices)
	set(b.Force32BitIndices, omm.Force32BitIndices)
	set(!b.DuplicateDetection, omm.DisableDuplicateDetection)
	set(b.NearDuplicateDetection, omm.EnableNearDuplicateDetection)
	set(!b.LevelLineIntersection, omm.DisableLevelLineIntersection)
	set(b.WorkloadValidation, omm.EnableWorkloadValidation)
	return in, nil
}
