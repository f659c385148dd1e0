package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/orisano/pixelmatch"
)

// DiffResult reports the outcome of a pixel comparison. Width and Height are
// the dimensions the comparison ran over, after padding.
type DiffResult struct {
	DiffCount int
	Width     int
	Height    int
}

// Pixels returns the number of pixels compared.
func (r DiffResult) Pixels() int {
	return r.Width * r.Height
}

// PixelDiffer compares PNG screenshots with pixelmatch.
type PixelDiffer struct {
	// Threshold is the per-pixel colour distance tolerance in [0,1].
	Threshold float64
	// IncludeAntiAlias counts anti-aliased pixels as differences.
	IncludeAntiAlias bool
}

// NewPixelDiffer returns a differ using the given per-pixel tolerance.
func NewPixelDiffer(threshold float64) *PixelDiffer {
	return &PixelDiffer{Threshold: threshold}
}

// Diff compares baselinePath with comparisonPath and writes the highlighted
// difference to diffPath. Images of different sizes are compared over the
// larger bounds so the extra area counts as changed.
func (d *PixelDiffer) Diff(baselinePath, comparisonPath, diffPath string) (DiffResult, error) {
	baseline, err := ReadPNG(baselinePath)
	if err != nil {
		return DiffResult{}, fmt.Errorf("read baseline: %w", err)
	}
	comparison, err := ReadPNG(comparisonPath)
	if err != nil {
		return DiffResult{}, fmt.Errorf("read comparison: %w", err)
	}
	return d.DiffImages(baseline, comparison, diffPath)
}

// DiffImages compares two decoded images and writes the diff PNG to diffPath.
// The overlapping area goes through pixelmatch; every pixel outside it exists
// in only one image and is counted and painted as a difference.
func (d *PixelDiffer) DiffImages(baseline, comparison image.Image, diffPath string) (DiffResult, error) {
	ab, bb := baseline.Bounds(), comparison.Bounds()
	w, h := max(ab.Dx(), bb.Dx()), max(ab.Dy(), bb.Dy())
	overlap := image.Rect(0, 0, min(ab.Dx(), bb.Dx()), min(ab.Dy(), bb.Dy()))

	a := toRGBA(baseline, overlap)
	b := toRGBA(comparison, overlap)

	opts := []pixelmatch.MatchOption{pixelmatch.Threshold(d.Threshold)}
	if d.IncludeAntiAlias {
		opts = append(opts, pixelmatch.IncludeAntiAlias)
	}
	var matched image.Image
	opts = append(opts, pixelmatch.WriteTo(&matched))

	count, err := pixelmatch.MatchPixel(a, b, opts...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("pixelmatch: %w", err)
	}
	// Identical inputs take a fast path that leaves matched unset.
	if matched == nil {
		matched = a
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(diffColor), image.Point{}, draw.Src)
	draw.Draw(out, overlap, matched, image.Point{}, draw.Src)
	count += w*h - overlap.Dx()*overlap.Dy()

	if err := WritePNG(diffPath, out); err != nil {
		return DiffResult{}, fmt.Errorf("write diff: %w", err)
	}
	return DiffResult{DiffCount: count, Width: w, Height: h}, nil
}

var diffColor = color.RGBA{R: 255, A: 255}

// toRGBA copies the area of img covered by rect (anchored at img's origin)
// into a zero-based RGBA image.
func toRGBA(img image.Image, rect image.Rectangle) *image.RGBA {
	out := image.NewRGBA(rect)
	draw.Draw(out, rect, img, img.Bounds().Min, draw.Src)
	return out
}
