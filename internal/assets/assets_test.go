package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/omm-baker/pkg/omm"
)

// stripes is opaque on the left half, transparent on the right, with red
// following alpha inverted.
func stripes(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 0})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFromImageChannels(t *testing.T) {
	img := stripes(8, 4)

	tests := []struct {
		channel     string
		left, right uint16
	}{
		{"alpha", 0xFFFF, 0},
		{"", 0xFFFF, 0},
		{"red", 0, 0xFFFF},
		{"green", 0, 0},
	}
	for _, tt := range tests {
		t.Run("channel="+tt.channel, func(t *testing.T) {
			a, err := FromImage(img, Options{Channel: tt.channel})
			if err != nil {
				t.Fatalf("FromImage() error = %v", err)
			}
			if len(a.Mips) != 1 {
				t.Fatalf("got %d mips, want 1", len(a.Mips))
			}
			if got := a.Mips[0].Alpha16At(0, 0).A; got != tt.left {
				t.Errorf("left = %#x, want %#x", got, tt.left)
			}
			if got := a.Mips[0].Alpha16At(7, 3).A; got != tt.right {
				t.Errorf("right = %#x, want %#x", got, tt.right)
			}
		})
	}

	if _, err := FromImage(img, Options{Channel: "depth"}); err == nil {
		t.Error("expected an error for an unknown channel")
	}
}

func TestMipChain(t *testing.T) {
	a, err := FromImage(stripes(16, 4), Options{Mips: 10})
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}
	want := []image.Point{{16, 4}, {8, 2}, {4, 1}, {2, 1}, {1, 1}}
	if len(a.Mips) != len(want) {
		t.Fatalf("got %d mips, want %d", len(a.Mips), len(want))
	}
	for i, m := range a.Mips {
		if m.Rect.Size() != want[i] {
			t.Errorf("mip %d size = %v, want %v", i, m.Rect.Size(), want[i])
		}
	}
	// The opaque half stays opaque in the first reduction.
	if got := a.Mips[1].Alpha16At(0, 0).A; got < 0xFF00 {
		t.Errorf("mip 1 left alpha = %#x", got)
	}
	if got := a.Mips[1].Alpha16At(7, 1).A; got > 0xFF {
		t.Errorf("mip 1 right alpha = %#x", got)
	}
}

func TestTextureDesc(t *testing.T) {
	a, err := FromImage(stripes(4, 2), Options{Mips: 2})
	if err != nil {
		t.Fatalf("FromImage() error = %v", err)
	}

	desc := a.TextureDesc(TextureOptions{ZOrder: true, AlphaCutoff: -1})
	if desc.Format != omm.TextureFP32 || desc.Flags != 0 || desc.AlphaCutoff != -1 {
		t.Errorf("desc = %+v", desc)
	}
	if len(desc.Mips) != 2 || desc.Mips[0].Width != 4 || desc.Mips[0].Height != 2 || len(desc.Mips[0].Data) != 32 {
		t.Fatalf("mips = %+v", desc.Mips)
	}
	first := math.Float32frombits(uint32(desc.Mips[0].Data[0]) | uint32(desc.Mips[0].Data[1])<<8 |
		uint32(desc.Mips[0].Data[2])<<16 | uint32(desc.Mips[0].Data[3])<<24)
	if first != 1 {
		t.Errorf("first texel = %v, want 1", first)
	}

	desc = a.TextureDesc(TextureOptions{Unorm8: true, AlphaCutoff: 0.5})
	if desc.Format != omm.TextureUNORM8 || desc.Flags&omm.TextureDisableZOrder == 0 || desc.AlphaCutoff != 0.5 {
		t.Errorf("desc = %+v", desc)
	}
	if got := desc.Mips[0].Data; !bytes.Equal(got, []byte{255, 255, 0, 0, 255, 255, 0, 0}) {
		t.Errorf("unorm8 data = %v", got)
	}
}

func TestDecodeFormats(t *testing.T) {
	img := stripes(6, 3)

	var pngBuf, bmpBuf, tiffBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		t.Fatal(err)
	}
	gray := image.NewGray(img.Bounds())
	if err := bmp.Encode(&bmpBuf, gray); err != nil {
		t.Fatal(err)
	}
	if err := tiff.Encode(&tiffBuf, img, nil); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		ext  string
		data []byte
	}{
		{".png", pngBuf.Bytes()},
		{".PNG", pngBuf.Bytes()},
		{".bmp", bmpBuf.Bytes()},
		{".tiff", tiffBuf.Bytes()},
	} {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := Decode(tt.data, tt.ext)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Bounds().Size() != (image.Point{6, 3}) {
				t.Errorf("size = %v", got.Bounds().Size())
			}
		})
	}

	if _, err := Decode(pngBuf.Bytes(), ".psd"); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}

func TestDecodeTGA(t *testing.T) {
	// Uncompressed 32-bit true color, 2x2, top-left origin.
	header := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 2, 0, 32, 0x28}
	data := append([]byte{}, header...)
	for i := 0; i < 4; i++ {
		data = append(data, 10, 20, 30, 255)
	}
	img, err := Decode(data, ".tga")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Bounds().Size() != (image.Point{2, 2}) {
		t.Errorf("size = %v", img.Bounds().Size())
	}
}

func TestManagerCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mask.png")
	writePNG(t, path, stripes(8, 8))

	m := NewManager()
	defer m.Close()
	if err := m.AddRoot(dir); err != nil {
		t.Fatalf("AddRoot() error = %v", err)
	}

	first, err := m.Load("mask.png", Options{Mips: 2})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := m.Load("mask.png", Options{Mips: 2})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first != second {
		t.Error("second load was not served from the cache")
	}
	if hits, misses := m.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}

	// Different options are a different entry.
	if _, err := m.Load("mask.png", Options{Channel: "red"}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.cache.Len() != 2 {
		t.Errorf("cache holds %d entries, want 2", m.cache.Len())
	}

	// Rewriting the file invalidates the entry.
	writePNG(t, path, stripes(4, 4))
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	third, err := m.Load("mask.png", Options{Mips: 2})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if third == first || third.Mips[0].Rect.Dx() != 4 {
		t.Error("changed file was served from the cache")
	}
}

func TestManagerResolve(t *testing.T) {
	low, high := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(low, "a.png"), stripes(2, 2))
	writePNG(t, filepath.Join(high, "a.png"), stripes(2, 2))
	writePNG(t, filepath.Join(low, "b.png"), stripes(2, 2))

	m := NewManager()
	if err := m.AddRoot(low); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRoot(high); err != nil {
		t.Fatal(err)
	}
	if err := m.AddRoot(filepath.Join(low, "a.png")); err == nil {
		t.Error("AddRoot() accepted a file")
	}

	if p, err := m.Resolve("a.png"); err != nil || p != filepath.Join(high, "a.png") {
		t.Errorf("Resolve(a.png) = %q, %v", p, err)
	}
	if p, err := m.Resolve("b.png"); err != nil || p != filepath.Join(low, "b.png") {
		t.Errorf("Resolve(b.png) = %q, %v", p, err)
	}
	if _, err := m.Resolve("missing.png"); err == nil {
		t.Error("Resolve() found a missing file")
	}
	if _, err := m.Load("missing.png", Options{}); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
