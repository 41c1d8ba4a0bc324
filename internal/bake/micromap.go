package bake

import (
	"github.com/Faultbox/omm-baker/pkg/bird"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Micromap is the bit-packed state string of one primitive. 2-state maps
// store 1 bit per micro-triangle, 4-state maps 2 bits, low bits first.
type Micromap struct {
	Level  uint32
	Format omm.Format
	Data   []byte
}

// MicromapSize returns the byte size of a micromap, at least one byte.
func MicromapSize(level uint32, format omm.Format) int {
	bits := int(bird.NumMicroTriangles(level)) * int(format.BitsPerState())
	return max(1, (bits+7)/8)
}

// NewMicromap allocates an all-transparent micromap.
func NewMicromap(level uint32, format omm.Format) Micromap {
	return Micromap{Level: level, Format: format, Data: make([]byte, MicromapSize(level, format))}
}

// Len returns the number of micro-triangles.
func (m Micromap) Len() int {
	return int(bird.NumMicroTriangles(m.Level))
}

// Set stores the state of micro-triangle i.
func (m Micromap) Set(i int, s omm.OpacityState) {
	if m.Format == omm.Format2State {
		shift := uint(i & 7)
		m.Data[i>>3] = m.Data[i>>3]&^(1<<shift) | (byte(s)&1)<<shift
		return
	}
	shift := uint(i<<1) & 7
	m.Data[i>>2] = m.Data[i>>2]&^(3<<shift) | (byte(s)&3)<<shift
}

// Get returns the state of micro-triangle i.
func (m Micromap) Get(i int) omm.OpacityState {
	if m.Format == omm.Format2State {
		return omm.OpacityState(m.Data[i>>3] >> uint(i&7) & 1)
	}
	return omm.OpacityState(m.Data[i>>2] >> (uint(i<<1) & 7) & 3)
}

// key identifies identical micromaps.
func (m Micromap) key() string {
	b := make([]byte, 0, len(m.Data)+3)
	b = append(b, byte(m.Level), byte(m.Format), byte(m.Format>>8))
	return string(append(b, m.Data...))
}
