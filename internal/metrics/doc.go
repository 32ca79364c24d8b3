// Package metrics tracks how the monitor side of a run is behaving.
//
// # Collector
//
// A [Collector] records the latency and outcome of every call made to one
// monitor agent:
//
//	c := metrics.NewCollector()
//	start := time.Now()
//	_, err := client.GetRecord(ctx)
//	c.RecordCall(time.Since(start), err)
//
//	stats := c.Stats(elapsed)
//
// Latencies go into an HDR histogram, so percentiles stay accurate without
// keeping every sample. Failures are tallied by gRPC status code when the
// error carries one, otherwise by a readable form of the error type, so a
// refused dial shows up as "Network error (dial)".
//
// [Hosts] keeps one collector per monitored host and is safe to share
// between pollers.
//
// # Prometheus
//
// [Prometheus] groups the counters exported by agents and collectors. It
// registers on an injectable prometheus.Registerer so tests can use a fresh
// registry.
package metrics
