package bake

import (
	"math/bits"
	"slices"
	"sync"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// entry is one unique micromap and the primitives that share it.
type entry struct {
	mm Micromap
	// first is the lowest primitive index referencing the entry; it orders
	// descriptors independently of thread scheduling.
	first int
	refs  int
	// mergedInto is the surviving entry after near-duplicate merging, or -1.
	mergedInto int
}

// dedupTable assigns micromaps to entries. Inserts are serialized so a key
// never yields two entries.
type dedupTable struct {
	mu      sync.Mutex
	byKey   map[string]int
	entries []*entry
	exact   bool
}

func newDedupTable(exact bool) *dedupTable {
	return &dedupTable{byKey: make(map[string]int), exact: exact}
}

// insert returns the entry id for mm as produced by primitive prim.
func (t *dedupTable) insert(prim int, mm Micromap) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exact {
		k := mm.key()
		if id, ok := t.byKey[k]; ok {
			e := t.entries[id]
			e.refs++
			e.first = min(e.first, prim)
			return id
		}
		t.byKey[k] = len(t.entries)
	}
	t.entries = append(t.entries, &entry{mm: mm, first: prim, refs: 1, mergedInto: -1})
	return len(t.entries) - 1
}

// resolve follows merges to the surviving entry.
func (t *dedupTable) resolve(id int) int {
	for t.entries[id].mergedInto >= 0 {
		id = t.entries[id].mergedInto
	}
	return id
}

// distanceClass collapses both unknown states to one symbol.
func distanceClass(s omm.OpacityState) omm.OpacityState {
	if s.IsUnknown() {
		return omm.UnknownOpaque
	}
	return s
}

// HammingDistance counts micro-triangles whose states differ, treating the
// two unknown states as equal. Both maps must share level and format.
func HammingDistance(a, b Micromap) int {
	if a.Format == omm.Format2State {
		d := 0
		for i := range a.Data {
			d += bits.OnesCount8(a.Data[i] ^ b.Data[i])
		}
		return d
	}
	d := 0
	for i, n := 0, a.Len(); i < n; i++ {
		if distanceClass(a.Get(i)) != distanceClass(b.Get(i)) {
			d++
		}
	}
	return d
}

// mergeInto folds src into dst. Micro-triangles that disagree become unknown
// for 4-state maps and follow the promotion rule for 2-state maps.
func mergeInto(dst, src Micromap, promotion omm.UnknownStatePromotion) {
	for i, n := 0, dst.Len(); i < n; i++ {
		a, b := dst.Get(i), src.Get(i)
		if distanceClass(a) == distanceClass(b) {
			continue
		}
		dst.Set(i, mergedState(dst.Format, promotion, a))
	}
}

func mergedState(format omm.Format, promotion omm.UnknownStatePromotion, kept omm.OpacityState) omm.OpacityState {
	if format == omm.Format4State {
		switch promotion {
		case omm.PromoteForceOpaque:
			return omm.UnknownOpaque
		case omm.PromoteForceTransparent:
			return omm.UnknownTransparent
		}
		return kept.Unknown()
	}
	switch promotion {
	case omm.PromoteForceOpaque:
		return omm.Opaque
	case omm.PromoteForceTransparent:
		return omm.Transparent
	}
	return kept
}

type bucketKey struct {
	level  uint32
	format omm.Format
}

// mergeNearDuplicates merges entries of equal level and format whose
// distance is within threshold * 4^level into the most referenced one. It
// only ever removes entries.
func (t *dedupTable) mergeNearDuplicates(threshold float32, promotion omm.UnknownStatePromotion) int {
	buckets := make(map[bucketKey][]int)
	var keys []bucketKey
	for id, e := range t.entries {
		k := bucketKey{e.mm.Level, e.mm.Format}
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], id)
	}

	merged := 0
	for _, k := range keys {
		ids := buckets[k]
		slices.SortFunc(ids, func(a, b int) int {
			ea, eb := t.entries[a], t.entries[b]
			if ea.refs != eb.refs {
				return eb.refs - ea.refs
			}
			return ea.first - eb.first
		})

		limit := int(threshold * float32(t.entries[ids[0]].mm.Len()))
		if limit == 0 {
			continue
		}
		for i, repID := range ids {
			rep := t.entries[repID]
			if rep.mergedInto >= 0 {
				continue
			}
			for _, candID := range ids[i+1:] {
				cand := t.entries[candID]
				if cand.mergedInto >= 0 || HammingDistance(rep.mm, cand.mm) > limit {
					continue
				}
				mergeInto(rep.mm, cand.mm, promotion)
				rep.refs += cand.refs
				rep.first = min(rep.first, cand.first)
				cand.mergedInto = repID
				merged++
			}
		}
	}
	return merged
}
