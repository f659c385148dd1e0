// Package api defines the wire-format types shared by the HTTP server and the
// CLI client.
//
// Converters translate store models into transport-friendly DTOs: device
// credentials are reduced to the username, and sites report the failing
// threshold that actually applies alongside the stored override. DTOs use
// camelCase JSON tags for dashboard consumers. Page payloads reuse the store's
// page shape so the notification channel and the HTTP API describe screenshot
// state identically.
package api
