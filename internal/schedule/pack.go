package schedule

// Assignment places one event in a lane of its cluster.
type Assignment struct {
	EventID      string `json:"event_id"`
	Column       int    `json:"column"`
	TotalColumns int    `json:"total_columns"`
}

// Pack assigns each span of a cluster to the leftmost column whose previous
// occupant has ended, opening a new column when none is free.
//
// The cluster must already be in the order produced by Cluster; Pack does
// not sort. The result is index-aligned with cluster, and every assignment
// carries the cluster's final column count so lanes share one width.
func Pack(cluster []Span) []Assignment {
	out := make([]Assignment, len(cluster))
	// columns[i] is the end of the event currently occupying column i.
	var columns []Clock

	for i, s := range cluster {
		col := -1
		for c, end := range columns {
			if s.Start >= end {
				col = c
				break
			}
		}
		if col < 0 {
			col = len(columns)
			columns = append(columns, s.End)
		} else {
			columns[col] = s.End
		}
		out[i] = Assignment{EventID: s.Event.ID, Column: col}
	}

	for i := range out {
		out[i].TotalColumns = len(columns)
	}
	return out
}
