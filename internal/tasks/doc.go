// Package tasks runs background maintenance alongside the HTTP server.
//
// # Session Janitor
//
// [SessionJanitor.Run] wakes every [DefaultSweepInterval] on its clock and deletes sessions older than
// [models.SessionMaxAge]. Handshakes that never reach the callback are removed this way. A failed sweep is logged
// and retried on the next tick; the janitor never stops the process.
//
// # Sweep Reporting
//
// Each sweep is reported as a [SweepResult] on the optional Updates channel. Sends use select with default so a slow
// reader never blocks the janitor.
package tasks
