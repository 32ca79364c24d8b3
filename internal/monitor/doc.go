// Package monitor polls monitor agents during a bench run and writes what they
// report to a monitor log.
//
// A Collector runs one poller goroutine per host and a single writer
// goroutine. Pollers never touch the log: they put records on a Queue, and the
// writer drains it in order. Close stops the pollers first, waits until every
// queued record has been written, and only then finalises the log, so no
// sample taken before Close returns is lost.
//
// A host whose handshake fails for connection reasons is excluded for the
// whole run. A host that fails mid-run is dropped; the remaining hosts keep
// being polled.
package monitor
