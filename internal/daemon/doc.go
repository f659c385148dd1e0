// Package daemon coordinates the long-running snapdiff process.
//
// It ties the capture pool, the comparison dispatcher, and the HTTP server
// into a single lifecycle with flock-based locking to prevent multiple
// instances sharing one data directory. Start brings components up in
// dependency order and unwinds on failure; Stop tears them down in reverse so
// no request reaches a pool that is already closed.
//
// Keep orchestration logic here: capture and comparison behaviour lives in
// their own packages while the daemon focuses on startup, shutdown, and
// status reporting.
package daemon
