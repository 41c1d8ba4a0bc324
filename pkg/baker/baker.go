// Package baker is the public entry point of the opacity micromap baker. A
// Baker owns textures, bake results and blobs, and hands out generation
// checked handles to them.
package baker

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/omm-baker/internal/bake"
	"github.com/Faultbox/omm-baker/internal/diag"
	"github.com/Faultbox/omm-baker/internal/serialize"
	"github.com/Faultbox/omm-baker/internal/texture"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Type selects the baker backend.
type Type uint8

const (
	TypeCPU Type = iota
	TypeGPU
)

func (t Type) String() string {
	switch t {
	case TypeCPU:
		return "CPU"
	case TypeGPU:
		return "GPU"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Stats summarizes a bake result.
type Stats = bake.Stats

// SerializeFlags control blob encoding.
type SerializeFlags = serialize.Flags

// SerializeCompress compresses the blob body.
const SerializeCompress = serialize.FlagCompress

// Blob format versions accepted by Serialize.
const (
	BlobVersion1      = serialize.Version1
	BlobVersion2      = serialize.Version2
	LatestBlobVersion = serialize.LatestVersion
)

// Options configure a Baker.
type Options struct {
	Type Type
	// Allocator provides every buffer the baker owns. Nil selects
	// omm.SystemAllocator.
	Allocator       omm.Allocator
	MessageCallback omm.MessageCallback
	// Logger receives debug summaries. Nil disables logging.
	Logger *zap.Logger
}

// Baker owns the objects behind its handles. Its methods are safe for
// concurrent use; a texture destroyed while a Bake or Serialize still reads
// it is freed when that call returns.
type Baker struct {
	typ     Type
	backend backend
	rep     diag.Reporter
	log     *zap.Logger
	objects arena
}

// New creates a baker.
func New(opts Options) (*Baker, error) {
	alloc := opts.Allocator
	if alloc == nil {
		alloc = omm.SystemAllocator{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b := &Baker{
		typ: opts.Type,
		rep: diag.New(opts.MessageCallback, log),
		log: log,
	}
	switch opts.Type {
	case TypeCPU:
		b.backend = &cpuBackend{alloc: alloc, rep: b.rep}
	case TypeGPU:
		b.backend = &gpuBackend{rep: b.rep}
	default:
		return nil, b.rep.InvalidArg("baker type (%d) is not valid", opts.Type)
	}
	log.Debug("baker created", zap.Stringer("type", opts.Type))
	return b, nil
}

// Type returns the backend type.
func (b *Baker) Type() Type { return b.typ }

// Destroy releases every object the baker still owns. Handles become stale.
func (b *Baker) Destroy() {
	released := 0
	b.objects.drain(func(_ omm.HandleKind, v any) {
		release(v)
		released++
	})
	b.log.Debug("baker destroyed", zap.Int("released", released))
}

func release(v any) {
	switch o := v.(type) {
	case *sharedTexture:
		o.release()
	case *bake.Result:
		o.Free()
	case *deserialized:
		o.raw.Free()
	}
}

// sharedTexture counts the handle plus every call still reading the
// texture. The last release frees it.
type sharedTexture struct {
	tex  *texture.Texture
	refs atomic.Int32
}

func share(tex *texture.Texture) *sharedTexture {
	st := &sharedTexture{tex: tex}
	st.refs.Store(1)
	return st
}

func (st *sharedTexture) release() {
	if st.refs.Add(-1) == 0 {
		st.tex.Free()
	}
}

// CreateTexture copies desc into a baker-owned texture.
func (b *Baker) CreateTexture(desc omm.TextureDesc) (omm.Handle, error) {
	tex, err := b.backend.createTexture(desc)
	if err != nil {
		return omm.Handle{}, err
	}
	return b.objects.insert(omm.KindTexture, share(tex)), nil
}

// DestroyTexture frees a texture. Results baked from it stay valid.
func (b *Baker) DestroyTexture(h omm.Handle) error {
	v, err := b.objects.remove(h, omm.KindTexture)
	if err != nil {
		return b.rep.Error(err)
	}
	release(v)
	return nil
}

// acquireTexture pins the texture behind h. Callers release it when done.
func (b *Baker) acquireTexture(h omm.Handle) (*sharedTexture, error) {
	if h.IsZero() {
		return nil, b.rep.InvalidArg("texture is not set")
	}
	st, err := b.objects.acquireTexture(h)
	if err != nil {
		return nil, b.rep.Error(err)
	}
	return st, nil
}

// Bake classifies in against the texture named by in.Texture and returns a
// handle to the result.
func (b *Baker) Bake(ctx context.Context, in *omm.BakeInput) (omm.Handle, error) {
	if b.typ != TypeCPU {
		_, err := b.backend.bake(ctx, nil, in)
		return omm.Handle{}, err
	}
	st, err := b.acquireTexture(in.Texture)
	if err != nil {
		return omm.Handle{}, err
	}
	defer st.release()
	res, err := b.backend.bake(ctx, st.tex, in)
	if err != nil {
		return omm.Handle{}, err
	}
	return b.objects.insert(omm.KindBakeResult, res), nil
}

func (b *Baker) result(h omm.Handle) (*bake.Result, error) {
	v, err := b.objects.get(h, omm.KindBakeResult)
	if err != nil {
		return nil, b.rep.Error(err)
	}
	return v.(*bake.Result), nil
}

// BakeResult returns the buffers of a result. They stay owned by the baker
// and are valid until DestroyBakeResult.
func (b *Baker) BakeResult(h omm.Handle) (*omm.BakeResult, error) {
	res, err := b.result(h)
	if err != nil {
		return nil, err
	}
	return &res.BakeResult, nil
}

// Stats computes usage totals for a result.
func (b *Baker) Stats(h omm.Handle) (Stats, error) {
	res, err := b.result(h)
	if err != nil {
		return Stats{}, err
	}
	return bake.ComputeStats(&res.BakeResult)
}

// ComputeStats computes usage totals for result buffers the baker does not
// own, such as those of a deserialized blob.
func ComputeStats(res *omm.BakeResult) (Stats, error) {
	return bake.ComputeStats(res)
}

// DestroyBakeResult frees a result.
func (b *Baker) DestroyBakeResult(h omm.Handle) error {
	v, err := b.objects.remove(h, omm.KindBakeResult)
	if err != nil {
		return b.rep.Error(err)
	}
	release(v)
	return nil
}

// SerializeDesc selects what goes into a blob.
type SerializeDesc struct {
	Flags   SerializeFlags
	Inputs  []omm.BakeInput
	Results []omm.Handle
	// Version is the blob layout; 0 selects LatestBlobVersion.
	Version int32
}

// Serialize encodes inputs and results and returns a handle to the blob.
func (b *Baker) Serialize(desc SerializeDesc) (omm.Handle, error) {
	if b.typ != TypeCPU {
		_, err := b.backend.serialize(nil, desc.Version)
		return omm.Handle{}, err
	}
	sd := &serialize.Desc{Flags: desc.Flags}
	for i := range desc.Inputs {
		st, err := b.acquireTexture(desc.Inputs[i].Texture)
		if err != nil {
			return omm.Handle{}, err
		}
		defer st.release()
		sd.Inputs = append(sd.Inputs, serialize.Input{Bake: desc.Inputs[i], Texture: st.tex})
	}
	for _, h := range desc.Results {
		res, err := b.result(h)
		if err != nil {
			return omm.Handle{}, err
		}
		sd.Results = append(sd.Results, res.BakeResult)
	}
	version := desc.Version
	if version == 0 {
		version = serialize.LatestVersion
	}
	blob, err := b.backend.serialize(sd, version)
	if err != nil {
		return omm.Handle{}, err
	}
	b.log.Debug("blob serialized", zap.Int("bytes", len(blob)), zap.Int32("version", version))
	return b.objects.insert(omm.KindSerialized, blob), nil
}

// Blob returns the bytes of a serialized blob, valid until DestroyBlob.
func (b *Baker) Blob(h omm.Handle) ([]byte, error) {
	v, err := b.objects.get(h, omm.KindSerialized)
	if err != nil {
		return nil, b.rep.Error(err)
	}
	return v.([]byte), nil
}

// DestroyBlob frees a serialized blob.
func (b *Baker) DestroyBlob(h omm.Handle) error {
	if _, err := b.objects.remove(h, omm.KindSerialized); err != nil {
		return b.rep.Error(err)
	}
	return nil
}

// DeserializedDesc is the content of a blob. Input texture handles refer
// to textures owned by the deserialized object.
type DeserializedDesc struct {
	Flags   SerializeFlags
	Version int32
	Inputs  []omm.BakeInput
	Results []omm.BakeResult
}

type deserialized struct {
	desc     DeserializedDesc
	textures []omm.Handle
	raw      *serialize.Desc
}

// Deserialize decodes a blob. Embedded textures are registered with the
// baker and released by DestroyDeserialized.
func (b *Baker) Deserialize(blob []byte) (omm.Handle, error) {
	raw, err := b.backend.deserialize(blob)
	if err != nil {
		return omm.Handle{}, err
	}
	d := &deserialized{
		desc: DeserializedDesc{Flags: raw.Flags, Version: raw.Version, Results: raw.Results},
		raw:  raw,
	}
	for i := range raw.Inputs {
		// The handle owns the texture from here on.
		th := b.objects.insert(omm.KindTexture, share(raw.Inputs[i].Texture))
		raw.Inputs[i].Texture = nil
		d.textures = append(d.textures, th)
		bi := raw.Inputs[i].Bake
		bi.Texture = th
		d.desc.Inputs = append(d.desc.Inputs, bi)
	}
	return b.objects.insert(omm.KindDeserialized, d), nil
}

// Deserialized returns the content of a deserialized blob.
func (b *Baker) Deserialized(h omm.Handle) (*DeserializedDesc, error) {
	v, err := b.objects.get(h, omm.KindDeserialized)
	if err != nil {
		return nil, b.rep.Error(err)
	}
	return &v.(*deserialized).desc, nil
}

// DestroyDeserialized frees a deserialized blob and the textures it created.
func (b *Baker) DestroyDeserialized(h omm.Handle) error {
	v, err := b.objects.remove(h, omm.KindDeserialized)
	if err != nil {
		return b.rep.Error(err)
	}
	d := v.(*deserialized)
	for _, th := range d.textures {
		// The caller may have destroyed the texture already.
		if v, err := b.objects.remove(th, omm.KindTexture); err == nil {
			release(v)
		}
	}
	d.raw.Free()
	return nil
}
