package comparison

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"snapdiff/internal/imaging"
	"snapdiff/internal/store"
	"snapdiff/internal/textutil"
)

// WebRoot is the URL prefix the server exposes the screenshots directory under.
const WebRoot = "/screenshots"

// SiteSegment is the directory name used for a site.
func SiteSegment(sitePath string) (string, error) {
	seg := textutil.SanitizeToken(sitePath)
	if seg == "" {
		return "", fmt.Errorf("site path %q has no filesystem-safe characters", sitePath)
	}
	return seg, nil
}

// PageSegment flattens a route into one directory name: "/" becomes "-" and
// "/about" becomes "about". Routes that do not survive the flattening
// unchanged ("/About", "/blog/post") get a short hash of the route appended,
// so distinct routes never share a directory.
func PageSegment(route string) string {
	route = store.NormalizeRoute(route)
	if route == "/" {
		return "-"
	}
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(route, "/") {
		if token := textutil.SanitizeToken(part); token != "" {
			parts = append(parts, token)
		}
	}
	segment := strings.Join(parts, "-")
	if segment != "" && route == "/"+segment {
		return segment
	}
	sum := sha256.Sum256([]byte(route))
	suffix := hex.EncodeToString(sum[:4])
	if segment == "" {
		return "-" + suffix
	}
	return segment + "-" + suffix
}

// PageDir returns the directory holding a page's captures.
func PageDir(root, sitePath, route string) (string, error) {
	site, err := SiteSegment(sitePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, site, PageSegment(route)), nil
}

// webRef maps a file inside the screenshots root to its public URL path,
// preferring the WebP rendition when it exists on disk. A WebP sibling only
// exists when it was encoded from the current PNG; see dropStaleWebP.
func webRef(root, file string) (string, error) {
	if webp := imaging.WebPPath(file); fileExists(webp) {
		file = webp
	}
	return relRef(root, file)
}

// producedRef maps a file written by this run: the WebP when one was encoded,
// otherwise the PNG.
func producedRef(root, png, webp string) (string, error) {
	if webp == "" {
		return relRef(root, png)
	}
	return relRef(root, webp)
}

func relRef(root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("screenshot ref for %s: %w", file, err)
	}
	return path.Join(WebRoot, filepath.ToSlash(rel)), nil
}

// within reports an error unless file lies inside root.
func within(root, file string) error {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return fmt.Errorf("screenshot path %s: %w", file, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("screenshot path %s escapes %s", file, root)
	}
	return nil
}

// dropStaleWebP removes the WebP sibling of a PNG that was just rewritten
// without a matching WebP, so refs never pair a new PNG with an old rendition.
func dropStaleWebP(png string) error {
	err := os.Remove(imaging.WebPPath(png))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
