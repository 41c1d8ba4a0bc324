package omm

import (
	"fmt"
	"testing"
	"unsafe"
)

func TestSpecialIndexEncoding(t *testing.T) {
	tests := []struct {
		state OpacityState
		want  SpecialIndex
	}{
		{Transparent, FullyTransparent},
		{Opaque, FullyOpaque},
		{UnknownTransparent, FullyUnknownTransparent},
		{UnknownOpaque, FullyUnknownOpaque},
	}
	for _, tt := range tests {
		if got := tt.state.SpecialIndex(); got != tt.want {
			t.Errorf("%v.SpecialIndex() = %d, want %d", tt.state, got, tt.want)
		}
		if got := tt.want.State(); got != tt.state {
			t.Errorf("SpecialIndex(%d).State() = %v, want %v", tt.want, got, tt.state)
		}
	}
}

func TestOpacityStateUnknown(t *testing.T) {
	if Opaque.Unknown() != UnknownOpaque {
		t.Error("Opaque.Unknown() != UnknownOpaque")
	}
	if Transparent.Unknown() != UnknownTransparent {
		t.Error("Transparent.Unknown() != UnknownTransparent")
	}
	if UnknownOpaque.Unknown() != UnknownOpaque {
		t.Error("UnknownOpaque.Unknown() changed the state")
	}
}

func TestFormatBitsPerState(t *testing.T) {
	if Format2State.BitsPerState() != 1 {
		t.Errorf("Format2State.BitsPerState() = %d, want 1", Format2State.BitsPerState())
	}
	if Format4State.BitsPerState() != 2 {
		t.Errorf("Format4State.BitsPerState() = %d, want 2", Format4State.BitsPerState())
	}
	if FormatInvalid.Valid() {
		t.Error("FormatInvalid.Valid() = true")
	}
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		err  error
		want Result
	}{
		{nil, Success},
		{fmt.Errorf("%w: texture is not set", ErrInvalidArgument), InvalidArgument},
		{fmt.Errorf("bake: %w", ErrWorkloadTooBig), WorkloadTooBig},
		{ErrNotImplemented, NotImplemented},
		{ErrInsufficientScratchMemory, InsufficientScratchMemory},
		{fmt.Errorf("something else"), Failure},
	}
	for _, tt := range tests {
		if got := ResultOf(tt.err); got != tt.want {
			t.Errorf("ResultOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestSystemAllocatorAlignment(t *testing.T) {
	var a SystemAllocator
	for _, align := range []int{1, 16, 64} {
		buf := a.Alloc(100, align)
		if len(buf) != 100 {
			t.Fatalf("Alloc(100, %d) len = %d", align, len(buf))
		}
		addr := uintptr(unsafe.Pointer(&buf[0]))
		if addr%uintptr(align) != 0 {
			t.Errorf("Alloc(100, %d) returned address %#x", align, addr)
		}
	}
	if got := a.Alloc(0, 64); len(got) != 0 {
		t.Errorf("Alloc(0, 64) len = %d", len(got))
	}
}

func TestBakeResultIndex(t *testing.T) {
	r := BakeResult{IndexFormat: Index16, IndexBuffer: Uint16Bytes([]uint16{3, 0xFFFE})}
	if r.IndexCount() != 2 {
		t.Fatalf("IndexCount() = %d, want 2", r.IndexCount())
	}
	if r.Index(0) != 3 || r.Index(1) != int32(FullyOpaque) {
		t.Errorf("Index() = %d, %d, want 3, -2", r.Index(0), r.Index(1))
	}

	r32 := BakeResult{IndexFormat: Index32, IndexBuffer: Uint32Bytes([]uint32{7, 0xFFFFFFFC})}
	if r32.Index(0) != 7 || r32.Index(1) != int32(FullyUnknownOpaque) {
		t.Errorf("Index() = %d, %d, want 7, -4", r32.Index(0), r32.Index(1))
	}
}

func TestHandleZero(t *testing.T) {
	var h Handle
	if !h.IsZero() {
		t.Error("zero Handle is not IsZero")
	}
	h = NewHandle(KindTexture, 3, 1)
	if h.IsZero() || h.Kind() != KindTexture || h.Index() != 3 || h.Generation() != 1 {
		t.Errorf("NewHandle round trip = %v", h)
	}
}
