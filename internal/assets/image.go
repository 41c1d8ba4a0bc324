package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// Options select what is read from an image.
type Options struct {
	// Channel is alpha (the default), red, green, blue or luminance.
	Channel string
	// Mips is the number of mip levels to build, including the base. Values
	// below 2 build the base level only. The chain stops at 1x1.
	Mips int
}

// AlphaImage is a chain of single-channel mips, finest first.
type AlphaImage struct {
	Mips []*image.Alpha16
}

// Decode decodes image data. ext picks the decoder; TGA has no signature so
// it can only be chosen by extension.
func Decode(data []byte, ext string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(ext) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".tif", ".tiff":
		return tiff.Decode(r)
	case ".webp":
		return webp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	default:
		return nil, fmt.Errorf("unsupported image format %q", ext)
	}
}

// LoadFile decodes the image at path and builds its alpha mip chain.
func LoadFile(path string, opts Options) (*AlphaImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return FromImage(img, opts)
}

// FromImage extracts a channel of img and builds the mip chain.
func FromImage(img image.Image, opts Options) (*AlphaImage, error) {
	extract, err := channel(opts.Channel)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image is empty")
	}
	if b.Dx() > omm.MaxTextureDimension || b.Dy() > omm.MaxTextureDimension {
		return nil, fmt.Errorf("image is %dx%d, larger than %d", b.Dx(), b.Dy(), omm.MaxTextureDimension)
	}

	base := image.NewAlpha16(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			base.SetAlpha16(x-b.Min.X, y-b.Min.Y, color.Alpha16{A: extract(img.At(x, y))})
		}
	}

	out := &AlphaImage{Mips: []*image.Alpha16{base}}
	for len(out.Mips) < opts.Mips {
		prev := out.Mips[len(out.Mips)-1]
		w, h := prev.Rect.Dx(), prev.Rect.Dy()
		if w == 1 && h == 1 {
			break
		}
		next := image.NewAlpha16(image.Rect(0, 0, max(1, w/2), max(1, h/2)))
		draw.BiLinear.Scale(next, next.Rect, prev, prev.Rect, draw.Src, nil)
		out.Mips = append(out.Mips, next)
	}
	return out, nil
}

// nrgba64 returns the straight (non-premultiplied) color. Colors that are
// already straight keep their RGB under zero alpha.
func nrgba64(c color.Color) color.NRGBA64 {
	switch v := c.(type) {
	case color.NRGBA:
		return color.NRGBA64{R: uint16(v.R) * 0x101, G: uint16(v.G) * 0x101, B: uint16(v.B) * 0x101, A: uint16(v.A) * 0x101}
	case color.NRGBA64:
		return v
	}
	return color.NRGBA64Model.Convert(c).(color.NRGBA64)
}

func channel(name string) (func(color.Color) uint16, error) {
	switch strings.ToLower(name) {
	case "", "alpha", "a":
		return func(c color.Color) uint16 {
			_, _, _, a := c.RGBA()
			return uint16(a)
		}, nil
	case "red", "r":
		return func(c color.Color) uint16 { return nrgba64(c).R }, nil
	case "green", "g":
		return func(c color.Color) uint16 { return nrgba64(c).G }, nil
	case "blue", "b":
		return func(c color.Color) uint16 { return nrgba64(c).B }, nil
	case "luminance", "gray", "l":
		return func(c color.Color) uint16 { return color.Gray16Model.Convert(c).(color.Gray16).Y }, nil
	default:
		return nil, fmt.Errorf("unknown channel %q", name)
	}
}

// TextureOptions control the conversion to a baker texture.
type TextureOptions struct {
	Unorm8 bool
	ZOrder bool
	// AlphaCutoff builds summed-area tables when >= 0.
	AlphaCutoff float32
}

// TextureDesc converts the chain into a baker texture description.
func (a *AlphaImage) TextureDesc(opts TextureOptions) omm.TextureDesc {
	desc := omm.DefaultTextureDesc()
	desc.AlphaCutoff = opts.AlphaCutoff
	if !opts.ZOrder {
		desc.Flags |= omm.TextureDisableZOrder
	}
	if opts.Unorm8 {
		desc.Format = omm.TextureUNORM8
	}

	for _, m := range a.Mips {
		w, h := m.Rect.Dx(), m.Rect.Dy()
		mip := omm.TextureMipDesc{Width: uint32(w), Height: uint32(h)}
		if opts.Unorm8 {
			data := make([]byte, w*h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					data[x+y*w] = uint8(m.Alpha16At(x, y).A >> 8)
				}
			}
			mip.Data = data
		} else {
			values := make([]float32, w*h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					values[x+y*w] = float32(m.Alpha16At(x, y).A) / 0xFFFF
				}
			}
			mip.Data = omm.Float32Bytes(values)
		}
		desc.Mips = append(desc.Mips, mip)
	}
	return desc
}
