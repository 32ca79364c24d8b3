package metrics

import (
	"cmp"
	"slices"
)

// StatusBucket is the failure count of one host for one error label.
type StatusBucket struct {
	Host  string
	Label string
	Count int
}

// FlattenStatusBuckets turns host → label → count into rows, most frequent
// first, then by host and label.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	var rows []StatusBucket
	for host, labels := range buckets {
		for label, n := range labels {
			rows = append(rows, StatusBucket{Host: host, Label: label, Count: n})
		}
	}
	slices.SortFunc(rows, func(a, b StatusBucket) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Host, b.Host),
			cmp.Compare(a.Label, b.Label),
		)
	})
	return rows
}
