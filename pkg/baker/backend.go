package baker

import (
	"context"

	"github.com/Faultbox/omm-baker/internal/bake"
	"github.com/Faultbox/omm-baker/internal/diag"
	"github.com/Faultbox/omm-baker/internal/serialize"
	"github.com/Faultbox/omm-baker/internal/texture"
	"github.com/Faultbox/omm-baker/pkg/omm"
)

// backend performs the work behind a Baker's handles.
type backend interface {
	createTexture(desc omm.TextureDesc) (*texture.Texture, error)
	bake(ctx context.Context, tex *texture.Texture, in *omm.BakeInput) (*bake.Result, error)
	serialize(desc *serialize.Desc, version int32) ([]byte, error)
	deserialize(blob []byte) (*serialize.Desc, error)
}

type cpuBackend struct {
	alloc omm.Allocator
	rep   diag.Reporter
}

func (c *cpuBackend) createTexture(desc omm.TextureDesc) (*texture.Texture, error) {
	tex, err := texture.New(desc, c.alloc)
	if err != nil {
		return nil, c.rep.Error(err)
	}
	return tex, nil
}

func (c *cpuBackend) bake(ctx context.Context, tex *texture.Texture, in *omm.BakeInput) (*bake.Result, error) {
	return bake.Bake(ctx, tex, in, bake.Options{Allocator: c.alloc, Reporter: c.rep})
}

func (c *cpuBackend) serialize(desc *serialize.Desc, version int32) ([]byte, error) {
	return serialize.Serialize(desc, version, c.rep)
}

func (c *cpuBackend) deserialize(blob []byte) (*serialize.Desc, error) {
	return serialize.Deserialize(blob, c.alloc, c.rep)
}

// gpuBackend is the typed stub for a GPU baker; the CPU operations are not
// available on it.
type gpuBackend struct {
	rep diag.Reporter
}

func (g *gpuBackend) createTexture(omm.TextureDesc) (*texture.Texture, error) {
	return nil, g.rep.NotImplemented("CreateTexture is only available on CPU bakers")
}

func (g *gpuBackend) bake(context.Context, *texture.Texture, *omm.BakeInput) (*bake.Result, error) {
	return nil, g.rep.NotImplemented("Bake is only available on CPU bakers")
}

func (g *gpuBackend) serialize(*serialize.Desc, int32) ([]byte, error) {
	return nil, g.rep.NotImplemented("Serialize is only available on CPU bakers")
}

func (g *gpuBackend) deserialize([]byte) (*serialize.Desc, error) {
	return nil, g.rep.NotImplemented("Deserialize is only available on CPU bakers")
}
