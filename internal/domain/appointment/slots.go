package appointment

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// SlotInterval is the fixed length of a consultation slot.
const SlotInterval = 30 * time.Minute

// Slots enumerates the provider's bookable start times: every 30-minute
// boundary from StartTime up to but excluding EndTime (half-open interval).
// A start time off the boundary grid is aligned up to the next boundary.
func Slots(p Provider) ([]string, error) {
	start, err := parseClock(p.StartTime)
	if err != nil {
		return nil, errors.Wrap(err, "start time")
	}
	end, err := parseClock(p.EndTime)
	if err != nil {
		return nil, errors.Wrap(err, "end time")
	}

	step := int(SlotInterval.Minutes())
	if rem := start % step; rem != 0 {
		start += step - rem
	}

	var slots []string
	for t := start; t < end; t += step {
		slots = append(slots, fmt.Sprintf("%02d:%02d", t/60, t%60))
	}
	return slots, nil
}

// DateAvailable reports whether the given calendar date is selectable for
// the provider. Weekday names match case-sensitively and exactly; an empty
// availability set means every date is available.
func DateAvailable(p Provider, date time.Time) bool {
	if len(p.Days) == 0 {
		return true
	}
	weekday := date.Weekday().String()
	for _, d := range p.Days {
		if d == weekday {
			return true
		}
	}
	return false
}

// parseClock converts an "HH:MM" string into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, errors.Wrapf(err, "parse clock %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}
