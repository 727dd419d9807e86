// Package schedule lays out timed appointments for the day and week views.
//
// The pipeline is Prepare → Cluster → Pack → Project. Every step is a pure
// function of its inputs, so the same event set always yields the same
// geometry.
package schedule

import (
	"errors"
	"fmt"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

const MinutesPerDay Clock = 24 * 60

var ErrBadClock = errors.New("schedule: clock must be HH:MM")

// ParseClock parses a zero-padded 24h "HH:MM" string. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}
	d := [4]int{}
	for i, p := range [4]int{0, 1, 3, 4} {
		c := s[p]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
		}
		d[i] = int(c - '0')
	}
	h := d[0]*10 + d[1]
	m := d[2]*10 + d[3]
	if m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q out of range", ErrBadClock, s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for constants; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}
