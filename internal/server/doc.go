// Package server exposes the snapdiff HTTP API.
//
// The router is built with chi. Everything under /api requires the configured
// bearer token (when one is set) and answers errors as {"error": "..."} JSON
// with a status derived from the services error markers. Captured images are
// served read-only under /screenshots/ straight from the screenshots
// directory, matching the web references stored on each page entry.
//
// Server owns only the listener. Capture pools, batch dispatchers and the
// notification hub are injected and their lifetimes stay with the daemon.
package server
