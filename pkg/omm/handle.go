package omm

import "fmt"

// HandleKind tags what a Handle refers to.
type HandleKind uint8

const (
	KindInvalid HandleKind = iota
	KindTexture
	KindBakeResult
	KindSerialized
	KindDeserialized
)

func (k HandleKind) String() string {
	switch k {
	case KindTexture:
		return "Texture"
	case KindBakeResult:
		return "BakeResult"
	case KindSerialized:
		return "Serialized"
	case KindDeserialized:
		return "Deserialized"
	default:
		return "Invalid"
	}
}

// Handle refers to an object owned by a baker. The generation detects use
// after destroy. The zero Handle is never valid.
type Handle struct {
	kind       HandleKind
	index      uint32
	generation uint32
}

// NewHandle is used by handle arenas.
func NewHandle(kind HandleKind, index, generation uint32) Handle {
	return Handle{kind: kind, index: index, generation: generation}
}

// Kind returns the handle's tag.
func (h Handle) Kind() HandleKind { return h.kind }

// Index returns the arena slot.
func (h Handle) Index() uint32 { return h.index }

// Generation returns the slot generation at creation time.
func (h Handle) Generation() uint32 { return h.generation }

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.kind == KindInvalid }

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d.%d", h.kind, h.index, h.generation)
}
