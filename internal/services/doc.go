// Package services defines shared utilities consumed by the capture pool,
// the comparison orchestrator, and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp site paths, page routes, device names, batch
//     identifiers, and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent API status codes.
package services
