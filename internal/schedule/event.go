package schedule

import (
	"cmp"
	"fmt"
)

// TimedEvent is the layout input: anything with an ID and a time range on
// one day.
type TimedEvent struct {
	ID    string `json:"id"`
	Date  string `json:"date,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Span is a TimedEvent whose bounds have been parsed and validated.
type Span struct {
	Event TimedEvent
	Start Clock
	End   Clock
}

// Rejected records an event that was dropped before layout.
type Rejected struct {
	Event  TimedEvent `json:"event"`
	Reason string     `json:"reason"`
}

// Order compares two spans. Clustering sorts with it and packing consumes
// the clustered order as-is, so both phases always agree.
type Order func(a, b Span) int

// CanonicalOrder sorts by start ascending, then end ascending.
func CanonicalOrder(a, b Span) int {
	if c := cmp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.End, b.End)
}

// Prepare parses every event and splits them into layout-ready spans and
// rejected ones. Input order is preserved in both outputs.
func Prepare(events []TimedEvent) ([]Span, []Rejected) {
	spans := make([]Span, 0, len(events))
	var rejected []Rejected

	for _, ev := range events {
		start, err := ParseClock(ev.Start)
		if err != nil {
			rejected = append(rejected, Rejected{Event: ev, Reason: "bad start: " + err.Error()})
			continue
		}
		end, err := ParseClock(ev.End)
		if err != nil {
			rejected = append(rejected, Rejected{Event: ev, Reason: "bad end: " + err.Error()})
			continue
		}
		if start >= end {
			rejected = append(rejected, Rejected{
				Event:  ev,
				Reason: fmt.Sprintf("start %s is not before end %s", start, end),
			})
			continue
		}
		spans = append(spans, Span{Event: ev, Start: start, End: end})
	}

	return spans, rejected
}
