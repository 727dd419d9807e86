package schedule

// Slot is a bookable time range.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FreeSlots lists every grid-aligned range of the given duration (minutes)
// inside the window that does not overlap any valid event. Busy time is the
// union of cluster extents, so back-to-back bookings leave no gap between
// them but an event ending at a slot start does not block it.
func FreeSlots(events []TimedEvent, s Scale, duration int) []Slot {
	if duration <= 0 {
		return nil
	}
	step := Clock(max(s.SlotMinutes, 1))
	dur := Clock(duration)

	spans, _ := Prepare(events)
	type interval struct{ start, end Clock }
	var busy []interval
	for _, cl := range Cluster(spans, CanonicalOrder) {
		iv := interval{start: cl[0].Start, end: cl[0].End}
		for _, sp := range cl[1:] {
			iv.end = max(iv.end, sp.End)
		}
		busy = append(busy, iv)
	}

	var out []Slot
	next := 0
	for t := s.WindowStart; t+dur <= s.WindowEnd; t += step {
		// busy is sorted by start; skip intervals that ended already.
		for next < len(busy) && busy[next].end <= t {
			next++
		}
		if next < len(busy) && busy[next].start < t+dur {
			continue
		}
		out = append(out, Slot{Start: t.String(), End: (t + dur).String()})
	}
	return out
}
