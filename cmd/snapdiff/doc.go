// Command snapdiff runs the visual-regression daemon and manages sites,
// pages, and devices through its HTTP API.
//
// "snapdiff serve" starts the daemon in the foreground. Site, page, device,
// compare, and status commands talk to a running daemon at paths.api_bind
// (override with --server). "snapdiff capture" takes a single screenshot with
// a private browser and needs no daemon.
package main
