// Package stats reduces benchmark timing samples into the numbers a load test
// report is built from.
//
// # Accumulators
//
// An [Accumulator] is the leaf collector for one (group, value, cycle) bucket.
// It keeps every duration it is given so exact percentiles can be computed:
//
//	acc := stats.NewAccumulator(60, stats.DefaultApdexT)
//	acc.AddRecord(1700000000.25, 0.120, nil)
//	acc.AddRecord(1700000000.80, 2.400, &stats.ErrorKey{Result: "Failure", Code: 503})
//
//	if err := acc.ComputePercentiles(5); err != nil {
//		return err
//	}
//	p95, _ := acc.Percentile(95)
//
// Percentiles are only defined after [Accumulator.ComputePercentiles] and are
// discarded by the next insert.
//
// # Aggregators
//
// An [Aggregator] is a read-only view over any number of [Provider]s, leaf
// accumulators or other aggregators. Every metric is a reduction computed on
// read. [Aggregator.OrderedValues] merges the children's sorted sequences with a
// heap instead of concatenating and re-sorting them, so percentiles over a whole
// group cost O(N log K).
//
// # Summary rows
//
// [Accumulator.Summary] and [Aggregator.Summary] produce the canonical
// [SummaryRow] consumed by every renderer; [Columns] holds its header.
//
// # Thread Safety
//
// Nothing in this package locks. An accumulator is owned by the parsing pass that
// fills it and is read-only afterwards.
package stats
