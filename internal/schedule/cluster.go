package schedule

import "slices"

// Cluster groups spans into maximal chains of overlapping events.
//
// Spans are stable-sorted with order, then swept once while tracking the
// furthest end seen in the open cluster. An event starting exactly at that
// end opens a new cluster: touching is not overlapping. Clusters come out in
// sweep order and each cluster keeps the sorted order Pack relies on.
func Cluster(spans []Span, order Order) [][]Span {
	if len(spans) == 0 {
		return nil
	}

	sorted := slices.Clone(spans)
	slices.SortStableFunc(sorted, order)

	var (
		clusters   [][]Span
		current    []Span
		clusterEnd Clock
	)
	for _, s := range sorted {
		if len(current) == 0 || s.Start < clusterEnd {
			current = append(current, s)
			clusterEnd = max(clusterEnd, s.End)
			continue
		}
		clusters = append(clusters, current)
		current = []Span{s}
		clusterEnd = s.End
	}
	clusters = append(clusters, current)

	return clusters
}
