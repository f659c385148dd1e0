// Package textutil provides filename and path-segment sanitization.
//
// Site paths, page routes, and device names become directory and file names
// under the screenshots root; these helpers fold accents, drop unsafe
// characters, and collapse separators so the same input always lands in the
// same place.
package textutil
