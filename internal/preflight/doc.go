// Package preflight provides readiness checks for the browser, broker, and
// filesystem paths that snapdiff depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure, then keeps the
//     results for GET /api/status.
//   - The CLI "snapdiff status" command runs them locally when the daemon is
//     unreachable.
//
// Optional checks (the AMQP broker) never block startup.
package preflight
