package imaging

import (
	"fmt"
	"io"

	"github.com/chai2010/webp"
)

// WebPEncoder re-encodes PNG files as lossy WebP.
type WebPEncoder struct {
	Quality int
}

// NewWebPEncoder returns an encoder using the given lossy quality (1..100).
func NewWebPEncoder(quality int) *WebPEncoder {
	return &WebPEncoder{Quality: quality}
}

// EncodeFile reads the PNG at src and writes a WebP rendition to dst.
func (e *WebPEncoder) EncodeFile(src, dst string) error {
	img, err := ReadPNG(src)
	if err != nil {
		return err
	}
	return writeAtomic(dst, func(w io.Writer) error {
		if err := webp.Encode(w, img, &webp.Options{Quality: float32(e.Quality)}); err != nil {
			return fmt.Errorf("encode webp: %w", err)
		}
		return nil
	})
}
