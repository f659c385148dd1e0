// Package imaging wraps the pixel-difference and WebP encoding capabilities
// used by the comparison pipeline.
//
// PixelDiffer decodes two PNG screenshots, pads them to a common size, counts
// the pixels whose colour distance exceeds the configured tolerance, and
// writes a highlighted diff PNG. WebPEncoder re-encodes PNG files into lossy
// WebP siblings for the dashboard.
package imaging
