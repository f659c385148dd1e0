package testsupport

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WritePNG writes a width x height image filled with fill, then paints the
// first changed pixels (row-major) with marker. It returns the written path.
func WritePNG(t testing.TB, path string, width, height int, fill color.Color, changed int, marker color.Color) string {
	t.Helper()

	img := SolidImage(width, height, fill)
	for i := 0; i < changed && i < width*height; i++ {
		img.Set(i%width, i/width, marker)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

// SolidImage returns an RGBA image filled with a single colour.
func SolidImage(width, height int, fill color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

// EncodePNG returns the PNG bytes of a solid image.
func EncodePNG(t testing.TB, width, height int, fill color.Color) []byte {
	t.Helper()

	path := WritePNG(t, filepath.Join(t.TempDir(), "fixture.png"), width, height, fill, 0, fill)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}
