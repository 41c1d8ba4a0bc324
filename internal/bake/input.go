package bake

import (
	"encoding/binary"
	stdmath "math"

	"github.com/mrjoshuak/go-openexr/half"

	"github.com/Faultbox/omm-baker/pkg/math"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// geometry reads triangles out of the raw index and texcoord buffers.
type geometry struct {
	in     *omm.BakeInput
	stride uint32
}

func newGeometry(in *omm.BakeInput) geometry {
	stride := in.TexCoordStride
	if stride == 0 {
		stride = in.TexCoordFormat.Size()
	}
	return geometry{in: in, stride: stride}
}

func (g geometry) index(i uint32) uint32 {
	if g.in.IndexFormat == omm.Index16 {
		return uint32(binary.LittleEndian.Uint16(g.in.Indices[i*2:]))
	}
	return binary.LittleEndian.Uint32(g.in.Indices[i*4:])
}

func (g geometry) texCoord(vertex uint32) math.Vec2 {
	buf := g.in.TexCoords[vertex*g.stride:]
	switch g.in.TexCoordFormat {
	case omm.UV16Unorm:
		return math.Vec2{
			X: float32(binary.LittleEndian.Uint16(buf)) / 65535,
			Y: float32(binary.LittleEndian.Uint16(buf[2:])) / 65535,
		}
	case omm.UV16Float:
		return math.Vec2{
			X: half.Half(binary.LittleEndian.Uint16(buf)).Float32(),
			Y: half.Half(binary.LittleEndian.Uint16(buf[2:])).Float32(),
		}
	default:
		return math.Vec2{
			X: stdmath.Float32frombits(binary.LittleEndian.Uint32(buf)),
			Y: stdmath.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
		}
	}
}

// triangle returns the UV triangle of primitive prim.
func (g geometry) triangle(prim int) math.Triangle {
	base := uint32(prim) * 3
	return math.NewTriangle(
		g.texCoord(g.index(base)),
		g.texCoord(g.index(base+1)),
		g.texCoord(g.index(base+2)),
	)
}

// maxIndex returns the largest vertex index referenced.
func (g geometry) maxIndex() uint32 {
	var m uint32
	for i := uint32(0); i < g.in.IndexCount; i++ {
		m = max(m, g.index(i))
	}
	return m
}

// format returns the micromap format of primitive prim.
func (g geometry) format(prim int) omm.Format {
	if len(g.in.Formats) > 0 && g.in.Formats[prim] != omm.FormatInvalid {
		return g.in.Formats[prim]
	}
	return g.in.Format
}

// levelOverride returns the per-primitive level, if one is set.
func (g geometry) levelOverride(prim int) (uint32, bool) {
	if len(g.in.SubdivisionLevels) == 0 {
		return 0, false
	}
	lvl := g.in.SubdivisionLevels[prim]
	if lvl >= omm.SubdivisionLevelUseGlobal {
		return 0, false
	}
	return uint32(lvl), true
}
