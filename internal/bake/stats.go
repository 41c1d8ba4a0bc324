package bake

import (
	"fmt"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Stats summarizes a bake result. Micro-triangle totals count every
// index-buffer reference, so a shared descriptor is counted once per use.
type Stats struct {
	TotalOpaque             uint64
	TotalTransparent        uint64
	TotalUnknownTransparent uint64
	TotalUnknownOpaque      uint64

	TotalFullyOpaque             uint32
	TotalFullyTransparent        uint32
	TotalFullyUnknownOpaque      uint32
	TotalFullyUnknownTransparent uint32

	// KnownAreaMetric is the mean fraction of each primitive's area with a
	// known state.
	KnownAreaMetric float32
}

// ComputeStats parses the result's buffers.
func ComputeStats(res *omm.BakeResult) (Stats, error) {
	var st Stats
	perDesc := make([][4]uint64, len(res.DescArray))
	for i, d := range res.DescArray {
		if !d.Format.Valid() || d.SubdivisionLevel > omm.MaxSubdivisionLevel {
			return Stats{}, fmt.Errorf("%w: descriptor %d has format %v at level %d", omm.ErrInvalidArgument, i, d.Format, d.SubdivisionLevel)
		}
		size := MicromapSize(uint32(d.SubdivisionLevel), d.Format)
		if int(d.Offset)+size > len(res.ArrayData) {
			return Stats{}, fmt.Errorf("%w: descriptor %d overruns array data", omm.ErrInvalidArgument, i)
		}
		mm := Micromap{Level: uint32(d.SubdivisionLevel), Format: d.Format, Data: res.ArrayData[d.Offset : int(d.Offset)+size]}
		for j, n := 0, mm.Len(); j < n; j++ {
			perDesc[i][mm.Get(j)]++
		}
	}

	var known float64
	n := res.IndexCount()
	for i := 0; i < n; i++ {
		idx := res.Index(i)
		if idx < 0 {
			switch omm.SpecialIndex(idx) {
			case omm.FullyOpaque:
				st.TotalFullyOpaque++
				known++
			case omm.FullyTransparent:
				st.TotalFullyTransparent++
				known++
			case omm.FullyUnknownOpaque:
				st.TotalFullyUnknownOpaque++
			case omm.FullyUnknownTransparent:
				st.TotalFullyUnknownTransparent++
			default:
				return Stats{}, fmt.Errorf("%w: index %d holds unknown special index %d", omm.ErrInvalidArgument, i, idx)
			}
			continue
		}
		if int(idx) >= len(perDesc) {
			return Stats{}, fmt.Errorf("%w: index %d references descriptor %d of %d", omm.ErrInvalidArgument, i, idx, len(perDesc))
		}
		c := perDesc[idx]
		st.TotalTransparent += c[omm.Transparent]
		st.TotalOpaque += c[omm.Opaque]
		st.TotalUnknownTransparent += c[omm.UnknownTransparent]
		st.TotalUnknownOpaque += c[omm.UnknownOpaque]
		total := c[0] + c[1] + c[2] + c[3]
		known += float64(c[omm.Transparent]+c[omm.Opaque]) / float64(total)
	}
	if n > 0 {
		st.KnownAreaMetric = float32(known / float64(n))
	}
	return st, nil
}
