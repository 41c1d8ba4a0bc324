package bake

import (
	"encoding/binary"
	"slices"

	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// cacheLine is the alignment of array regions whose size is a multiple of it.
const cacheLine = 64

// max16BitIndex is the largest descriptor index a 16-bit entry can hold.
const max16BitIndex = 32767

// primResult is the outcome of classifying one primitive: either a special
// index or a dedup entry.
type primResult struct {
	special omm.SpecialIndex
	entry   int
}

func specialResult(s omm.SpecialIndex) primResult { return primResult{special: s, entry: -1} }

// compact assembles the final buffers. Descriptors are ordered by level,
// then format, then the first primitive that referenced them.
func compact(table *dedupTable, prims []primResult, force32 bool, alloc omm.Allocator) omm.BakeResult {
	var live []int
	for id, e := range table.entries {
		if e.mergedInto < 0 {
			live = append(live, id)
		}
	}
	slices.SortFunc(live, func(a, b int) int {
		ea, eb := table.entries[a].mm, table.entries[b].mm
		if ea.Level != eb.Level {
			return int(ea.Level) - int(eb.Level)
		}
		if ea.Format != eb.Format {
			return int(ea.Format) - int(eb.Format)
		}
		return table.entries[a].first - table.entries[b].first
	})

	descIndex := make(map[int]int32, len(live))
	descs := make([]omm.OpacityMicromapDesc, len(live))
	var size uint64
	for i, id := range live {
		mm := table.entries[id].mm
		n := uint64(len(mm.Data))
		if n%cacheLine == 0 {
			size = math.Align(size, cacheLine)
		}
		descs[i] = omm.OpacityMicromapDesc{Offset: uint32(size), SubdivisionLevel: uint16(mm.Level), Format: mm.Format}
		descIndex[id] = int32(i)
		size += n
	}

	var arrayData []byte
	if size > 0 {
		arrayData = alloc.Alloc(int(size), cacheLine)
		clear(arrayData)
		for i, id := range live {
			copy(arrayData[descs[i].Offset:], table.entries[id].mm.Data)
		}
	}

	indexFormat := omm.Index16
	if force32 || len(descs) > max16BitIndex || len(prims) > max16BitIndex {
		indexFormat = omm.Index32
	}

	indexBuffer := alloc.Alloc(len(prims)*indexFormat.Size(), 4)
	indexCounts := make(map[bucketKey]uint32)
	for i, p := range prims {
		v := int32(p.special)
		if p.entry >= 0 {
			v = descIndex[table.resolve(p.entry)]
			d := descs[v]
			indexCounts[bucketKey{uint32(d.SubdivisionLevel), d.Format}]++
		}
		if indexFormat == omm.Index16 {
			binary.LittleEndian.PutUint16(indexBuffer[i*2:], uint16(int16(v)))
		} else {
			binary.LittleEndian.PutUint32(indexBuffer[i*4:], uint32(v))
		}
	}

	descCounts := make(map[bucketKey]uint32)
	for _, d := range descs {
		descCounts[bucketKey{uint32(d.SubdivisionLevel), d.Format}]++
	}

	return omm.BakeResult{
		ArrayData:          arrayData,
		DescArray:          descs,
		DescArrayHistogram: histogram(descCounts),
		IndexBuffer:        indexBuffer,
		IndexFormat:        indexFormat,
		IndexHistogram:     histogram(indexCounts),
	}
}

// histogram flattens counts into rows ordered by level then format. Only
// non-zero counts are present in the map, so no zero rows are emitted.
func histogram(counts map[bucketKey]uint32) []omm.UsageCount {
	rows := make([]omm.UsageCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, omm.UsageCount{Count: n, SubdivisionLevel: uint16(k.level), Format: k.format})
	}
	slices.SortFunc(rows, func(a, b omm.UsageCount) int {
		if a.SubdivisionLevel != b.SubdivisionLevel {
			return int(a.SubdivisionLevel) - int(b.SubdivisionLevel)
		}
		return int(a.Format) - int(b.Format)
	})
	return rows
}
