// Package serialize stores bake inputs and results in a versioned,
// checksummed little-endian blob.
package serialize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"

	"github.com/Faultbox/omm-baker/internal/bake"
	"github.com/Faultbox/omm-baker/internal/diag"
	"github.com/Faultbox/omm-baker/internal/texture"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Library version recorded in every blob header.
const (
	VersionMajor = 1
	VersionMinor = 4
	VersionBuild = 0
)

// Blob layout versions. Version 2 adds the workload and near-duplicate
// limits to each input and allows a compressed body.
const (
	Version1      int32 = 1
	Version2      int32 = 2
	LatestVersion       = Version2
)

// Flags control serialization.
type Flags uint32

const (
	// FlagCompress compresses the body with s2. Requires Version2.
	FlagCompress Flags = 1 << 0
)

// header precedes the body. Digest covers every byte after it.
type header struct {
	Digest  uint64
	Major   int32
	Minor   int32
	Build   int32
	Version int32
	Flags   uint32
}

const headerSize = 8 + 4*4 + 4

// Input is one serialized bake input and the texture it samples.
type Input struct {
	Bake    omm.BakeInput
	Texture *texture.Texture
}

// Desc is the content of a blob.
type Desc struct {
	Flags   Flags
	Inputs  []Input
	Results []omm.BakeResult

	// Version and the buffers below are set by Deserialize.
	Version int32
	alloc   omm.Allocator
	owned   [][]byte
}

// Free releases textures and buffers created by Deserialize.
func (d *Desc) Free() {
	for _, in := range d.Inputs {
		if in.Texture != nil {
			in.Texture.Free()
		}
	}
	if d.alloc != nil {
		for _, b := range d.owned {
			d.alloc.Free(b)
		}
	}
	d.Inputs, d.Results, d.owned = nil, nil, nil
}

type samplingBlock struct {
	AddressMode    uint8
	Filter         uint8
	BorderAlpha    float32
	AlphaMode      uint8
	TexCoordFormat uint8
}

type classifyBlock struct {
	DynamicSubdivisionScale float32
	RejectionThreshold      float32
	AlphaCutoff             float32
	AlphaCutoffLessEqual    uint8
	AlphaCutoffGreater      uint8
	Format                  uint16
}

type limitsBlock struct {
	MaxWorkloadSize        uint64
	NearDuplicateThreshold float32
}

// Serialize encodes desc as a version blob.
func Serialize(desc *Desc, version int32, r diag.Reporter) ([]byte, error) {
	if version < Version1 || version > LatestVersion {
		return nil, r.InvalidArg("blob version (%d) is not supported, expected %d..%d", version, Version1, LatestVersion)
	}
	if desc.Flags&FlagCompress != 0 && version < Version2 {
		return nil, r.InvalidArg("compression requires blob version %d or newer", Version2)
	}
	for i := range desc.Inputs {
		if err := checkInput(&desc.Inputs[i]); err != nil {
			return nil, r.InvalidArg("inputs[%d]: %v", i, err)
		}
	}

	w := &writer{buf: new(bytes.Buffer)}
	w.put(uint32(len(desc.Inputs)))
	for i := range desc.Inputs {
		w.input(&desc.Inputs[i], version)
	}
	w.put(uint32(len(desc.Results)))
	for i := range desc.Results {
		w.result(&desc.Results[i])
	}
	if w.err != nil {
		return nil, fmt.Errorf("%w: encoding blob: %v", omm.ErrFailure, w.err)
	}

	body := w.buf.Bytes()
	if desc.Flags&FlagCompress != 0 {
		body = s2.Encode(nil, body)
	}

	hdr := header{
		Major:   VersionMajor,
		Minor:   VersionMinor,
		Build:   VersionBuild,
		Version: version,
		Flags:   uint32(desc.Flags),
	}
	out := bytes.NewBuffer(make([]byte, 0, headerSize+len(body)))
	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: writing header: %v", omm.ErrFailure, err)
	}
	out.Write(body)

	blob := out.Bytes()
	binary.LittleEndian.PutUint64(blob, xxhash.Sum64(blob[8:]))
	return blob, nil
}

// checkInput rejects inputs whose buffers are shorter than their counts.
func checkInput(in *Input) error {
	if in.Texture == nil {
		return fmt.Errorf("texture is not set")
	}
	b := &in.Bake
	if need := int(b.IndexCount) * b.IndexFormat.Size(); len(b.Indices) < need {
		return fmt.Errorf("indexBuffer has %d bytes, need %d", len(b.Indices), need)
	}
	if n := len(b.Formats); n != 0 && n < b.TriangleCount() {
		return fmt.Errorf("formats has %d entries, need %d", n, b.TriangleCount())
	}
	if n := len(b.SubdivisionLevels); n != 0 && n < b.TriangleCount() {
		return fmt.Errorf("subdivisionLevels has %d entries, need %d", n, b.TriangleCount())
	}
	if need := texCoordsSize(b); uint64(len(b.TexCoords)) < need {
		return fmt.Errorf("texCoords has %d bytes, need %d", len(b.TexCoords), need)
	}
	return nil
}

// texCoordsSize is the number of texcoord bytes the indices reach.
func texCoordsSize(in *omm.BakeInput) uint64 {
	if in.IndexCount == 0 || in.TexCoordFormat.Size() == 0 {
		return 0
	}
	stride := in.TexCoordStride
	if stride == 0 {
		stride = in.TexCoordFormat.Size()
	}
	var maxIndex uint32
	for i := 0; i < int(in.IndexCount); i++ {
		var v uint32
		if in.IndexFormat == omm.Index16 {
			v = uint32(binary.LittleEndian.Uint16(in.Indices[i*2:]))
		} else {
			v = binary.LittleEndian.Uint32(in.Indices[i*4:])
		}
		maxIndex = max(maxIndex, v)
	}
	return uint64(maxIndex)*uint64(stride) + uint64(in.TexCoordFormat.Size())
}

type writer struct {
	buf *bytes.Buffer
	err error
}

func (w *writer) put(v any) {
	if w.err == nil {
		w.err = binary.Write(w.buf, binary.LittleEndian, v)
	}
}

// blob writes a length-prefixed byte string.
func (w *writer) blob(b []byte) {
	w.put(uint64(len(b)))
	w.buf.Write(b)
}

func (w *writer) input(in *Input, version int32) {
	b := &in.Bake
	w.put(uint32(b.Flags))
	if w.err == nil {
		w.err = in.Texture.Encode(w.buf)
	}
	w.put(&samplingBlock{
		AddressMode:    uint8(b.Sampler.AddressMode),
		Filter:         uint8(b.Sampler.Filter),
		BorderAlpha:    b.Sampler.BorderAlpha,
		AlphaMode:      uint8(b.AlphaMode),
		TexCoordFormat: uint8(b.TexCoordFormat),
	})
	w.blob(b.TexCoords[:texCoordsSize(b)])
	w.put(b.TexCoordStride)
	w.put(uint8(b.IndexFormat))
	w.put(b.IndexCount)
	w.buf.Write(b.Indices[:int(b.IndexCount)*b.IndexFormat.Size()])
	w.put(&classifyBlock{
		DynamicSubdivisionScale: b.DynamicSubdivisionScale,
		RejectionThreshold:      b.RejectionThreshold,
		AlphaCutoff:             b.AlphaCutoff,
		AlphaCutoffLessEqual:    uint8(b.AlphaCutoffLessEqual),
		AlphaCutoffGreater:      uint8(b.AlphaCutoffGreater),
		Format:                  uint16(b.Format),
	})
	formats := make([]uint16, len(b.Formats))
	for i, f := range b.Formats {
		formats[i] = uint16(f)
	}
	w.put(uint64(len(formats)))
	w.put(formats)
	w.put(uint8(b.UnknownStatePromotion))
	w.put(b.MaxSubdivisionLevel)
	w.blob(b.SubdivisionLevels)
	if version >= Version2 {
		w.put(&limitsBlock{MaxWorkloadSize: b.MaxWorkloadSize, NearDuplicateThreshold: b.NearDuplicateThreshold})
	}
}

func (w *writer) result(res *omm.BakeResult) {
	w.blob(res.ArrayData)
	w.put(uint32(len(res.DescArray)))
	w.put(res.DescArray)
	w.histogram(res.DescArrayHistogram)
	w.put(uint8(res.IndexFormat))
	w.blob(res.IndexBuffer)
	w.histogram(res.IndexHistogram)
}

func (w *writer) histogram(rows []omm.UsageCount) {
	w.put(uint32(len(rows)))
	w.put(rows)
}

// Deserialize decodes a blob. Textures and buffers are allocated from alloc
// and released by Desc.Free.
func Deserialize(blob []byte, alloc omm.Allocator, r diag.Reporter) (*Desc, error) {
	if alloc == nil {
		alloc = omm.SystemAllocator{}
	}
	if len(blob) < headerSize {
		return nil, r.InvalidArg("blob is %d bytes, smaller than its %d byte header", len(blob), headerSize)
	}
	var hdr header
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &hdr); err != nil {
		return nil, r.InvalidArg("reading blob header: %v", err)
	}
	if sum := xxhash.Sum64(blob[8:]); sum != hdr.Digest {
		return nil, r.InvalidArg("blob digest mismatch (stored %016x, computed %016x)", hdr.Digest, sum)
	}
	if hdr.Version > LatestVersion {
		return nil, r.InvalidArg("blob version (%d) is newer than the latest supported version (%d)", hdr.Version, LatestVersion)
	}
	if hdr.Version < Version1 {
		return nil, r.InvalidArg("blob version (%d) is not valid", hdr.Version)
	}

	flags := Flags(hdr.Flags)
	body := blob[headerSize:]
	if flags&FlagCompress != 0 {
		if hdr.Version < Version2 {
			return nil, r.InvalidArg("blob version %d cannot be compressed", hdr.Version)
		}
		raw, err := s2.Decode(nil, body)
		if err != nil {
			return nil, r.InvalidArg("decompressing blob: %v", err)
		}
		body = raw
	}

	desc := &Desc{Flags: flags, Version: hdr.Version, alloc: alloc}
	rd := &reader{r: bytes.NewReader(body), desc: desc}
	if err := rd.decode(hdr.Version); err != nil {
		desc.Free()
		return nil, r.InvalidArg("malformed blob: %v", err)
	}
	if n := rd.r.Len(); n != 0 {
		desc.Free()
		return nil, r.InvalidArg("malformed blob: %d trailing bytes", n)
	}
	return desc, nil
}

type reader struct {
	r    *bytes.Reader
	desc *Desc
	err  error
}

func (rd *reader) get(v any) {
	if rd.err == nil {
		if err := binary.Read(rd.r, binary.LittleEndian, v); err != nil {
			rd.err = fmt.Errorf("truncated data: %w", err)
		}
	}
}

// count reads a uint32 element count and bounds it by the bytes left.
func (rd *reader) count(elemSize int) int {
	var n uint32
	rd.get(&n)
	if rd.err == nil && uint64(n)*uint64(elemSize) > uint64(rd.r.Len()) {
		rd.err = fmt.Errorf("count %d exceeds remaining %d bytes", n, rd.r.Len())
	}
	if rd.err != nil {
		return 0
	}
	return int(n)
}

// bytes reads n bytes into an allocator-owned buffer.
func (rd *reader) bytes(n uint64) []byte {
	if rd.err != nil {
		return nil
	}
	if n > uint64(rd.r.Len()) {
		rd.err = fmt.Errorf("length %d exceeds remaining %d bytes", n, rd.r.Len())
		return nil
	}
	if n == 0 {
		return nil
	}
	b := rd.desc.alloc.Alloc(int(n), 16)
	rd.desc.owned = append(rd.desc.owned, b)
	if _, err := io.ReadFull(rd.r, b); err != nil {
		rd.err = fmt.Errorf("truncated data: %w", err)
	}
	return b
}

// blob reads a length-prefixed byte string.
func (rd *reader) blob() []byte {
	var n uint64
	rd.get(&n)
	return rd.bytes(n)
}

func (rd *reader) decode(version int32) error {
	n := rd.count(1)
	for i := 0; i < n && rd.err == nil; i++ {
		rd.input(version)
	}
	n = rd.count(1)
	for i := 0; i < n && rd.err == nil; i++ {
		rd.result()
	}
	return rd.err
}

func (rd *reader) input(version int32) {
	in := Input{Bake: omm.DefaultBakeInput()}
	b := &in.Bake

	var flags uint32
	rd.get(&flags)
	b.Flags = omm.BakeFlags(flags)
	if rd.err != nil {
		return
	}
	tex, err := texture.Decode(rd.r, rd.desc.alloc)
	if err != nil {
		rd.err = err
		return
	}
	in.Texture = tex
	rd.desc.Inputs = append(rd.desc.Inputs, in)
	b = &rd.desc.Inputs[len(rd.desc.Inputs)-1].Bake

	var s samplingBlock
	rd.get(&s)
	b.Sampler = omm.SamplerDesc{
		AddressMode: omm.TextureAddressMode(s.AddressMode),
		Filter:      omm.TextureFilterMode(s.Filter),
		BorderAlpha: s.BorderAlpha,
	}
	b.AlphaMode = omm.AlphaMode(s.AlphaMode)
	b.TexCoordFormat = omm.TexCoordFormat(s.TexCoordFormat)
	b.TexCoords = rd.blob()
	rd.get(&b.TexCoordStride)

	var indexFormat uint8
	rd.get(&indexFormat)
	b.IndexFormat = omm.IndexFormat(indexFormat)
	rd.get(&b.IndexCount)
	b.Indices = rd.bytes(uint64(b.IndexCount) * uint64(b.IndexFormat.Size()))

	var c classifyBlock
	rd.get(&c)
	b.DynamicSubdivisionScale = c.DynamicSubdivisionScale
	b.RejectionThreshold = c.RejectionThreshold
	b.AlphaCutoff = c.AlphaCutoff
	b.AlphaCutoffLessEqual = omm.OpacityState(c.AlphaCutoffLessEqual)
	b.AlphaCutoffGreater = omm.OpacityState(c.AlphaCutoffGreater)
	b.Format = omm.Format(c.Format)

	var numFormats uint64
	rd.get(&numFormats)
	if rd.err == nil && numFormats*2 > uint64(rd.r.Len()) {
		rd.err = fmt.Errorf("format count %d exceeds remaining %d bytes", numFormats, rd.r.Len())
	}
	if rd.err == nil && numFormats > 0 {
		formats := make([]uint16, numFormats)
		rd.get(formats)
		b.Formats = make([]omm.Format, numFormats)
		for i, f := range formats {
			b.Formats[i] = omm.Format(f)
		}
	}

	var promotion uint8
	rd.get(&promotion)
	b.UnknownStatePromotion = omm.UnknownStatePromotion(promotion)
	rd.get(&b.MaxSubdivisionLevel)
	b.SubdivisionLevels = rd.blob()

	if version >= Version2 {
		var l limitsBlock
		rd.get(&l)
		b.MaxWorkloadSize = l.MaxWorkloadSize
		b.NearDuplicateThreshold = l.NearDuplicateThreshold
	}
}

func (rd *reader) result() {
	var res omm.BakeResult
	res.ArrayData = rd.blob()
	if n := rd.count(8); n > 0 {
		res.DescArray = make([]omm.OpacityMicromapDesc, n)
		rd.get(res.DescArray)
	}
	res.DescArrayHistogram = rd.histogram()
	var indexFormat uint8
	rd.get(&indexFormat)
	res.IndexFormat = omm.IndexFormat(indexFormat)
	res.IndexBuffer = rd.blob()
	res.IndexHistogram = rd.histogram()
	if rd.err != nil {
		return
	}
	if res.IndexFormat != omm.Index16 && res.IndexFormat != omm.Index32 {
		rd.err = fmt.Errorf("result index format %d is not valid", indexFormat)
		return
	}
	if _, err := bake.ComputeStats(&res); err != nil {
		rd.err = fmt.Errorf("result %d: %w", len(rd.desc.Results), err)
		return
	}
	rd.desc.Results = append(rd.desc.Results, res)
}

func (rd *reader) histogram() []omm.UsageCount {
	n := rd.count(8)
	if n == 0 {
		return nil
	}
	rows := make([]omm.UsageCount, n)
	rd.get(rows)
	return rows
}
