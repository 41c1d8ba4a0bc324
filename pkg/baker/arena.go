package baker

import (
	"fmt"
	"sync"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// slot holds one object. Generation increases on every release so stale
// handles never resolve to a reused slot.
type slot struct {
	generation uint32
	kind       omm.HandleKind
	value      any
}

// arena stores the objects a baker hands out handles for.
type arena struct {
	slots []slot
	free  []uint32
	mu    sync.RWMutex
}

func (a *arena) insert(kind omm.HandleKind, v any) omm.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{generation: 1})
	}
	s := &a.slots[idx]
	s.kind = kind
	s.value = v
	return omm.NewHandle(kind, idx, s.generation)
}

func (a *arena) lookup(h omm.Handle, kind omm.HandleKind) (*slot, error) {
	if h.Kind() != kind {
		return nil, fmt.Errorf("%w: handle %v is not a %v handle", omm.ErrInvalidArgument, h, kind)
	}
	if int(h.Index()) >= len(a.slots) {
		return nil, fmt.Errorf("%w: handle %v is out of range", omm.ErrInvalidArgument, h)
	}
	s := &a.slots[h.Index()]
	if s.kind != kind || s.generation != h.Generation() || s.value == nil {
		return nil, fmt.Errorf("%w: handle %v is stale", omm.ErrInvalidArgument, h)
	}
	return s, nil
}

func (a *arena) get(h omm.Handle, kind omm.HandleKind) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, err := a.lookup(h, kind)
	if err != nil {
		return nil, err
	}
	return s.value, nil
}

// acquireTexture takes a reference on a live texture while the slot is
// locked, so a concurrent remove cannot drop the last reference first.
func (a *arena) acquireTexture(h omm.Handle) (*sharedTexture, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, err := a.lookup(h, omm.KindTexture)
	if err != nil {
		return nil, err
	}
	st := s.value.(*sharedTexture)
	st.refs.Add(1)
	return st, nil
}

// remove releases the slot and returns what it held.
func (a *arena) remove(h omm.Handle, kind omm.HandleKind) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(h, kind)
	if err != nil {
		return nil, err
	}
	v := s.value
	s.value = nil
	s.kind = omm.KindInvalid
	s.generation++
	a.free = append(a.free, h.Index())
	return v, nil
}

// drain releases every live slot, calling fn for each value.
func (a *arena) drain(fn func(kind omm.HandleKind, v any)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.slots {
		s := &a.slots[i]
		if s.value == nil {
			continue
		}
		fn(s.kind, s.value)
		s.value = nil
		s.kind = omm.KindInvalid
		s.generation++
		a.free = append(a.free, uint32(i))
	}
}

// live returns the number of live objects.
func (a *arena) live() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots) - len(a.free)
}
