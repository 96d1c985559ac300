package schedule

import (
	"strings"
	"time"

	"codeberg.org/kaibil/xark/internal/errors"
)

const minutesPerHour = 60

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Window is the operational window inside which the agent does any work.
// Outside of it an invocation logs and exits without touching the store.
type Window struct {
	start int // minutes since midnight, inclusive
	end   int // minutes since midnight, inclusive
	days  map[time.Weekday]bool
}

// Parse builds a Window from "HH:MM" bounds and a list of three-letter
// weekday names ("mon" .. "sun", case-insensitive).
func Parse(start, end string, days []string) (Window, error) {
	errFactory := errors.New()

	startMin, err := parseClock(start)
	if err != nil {
		return Window{}, errFactory.Wrap(errors.ErrInvalidWindow, err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return Window{}, errFactory.Wrap(errors.ErrInvalidWindow, err)
	}
	if endMin < startMin {
		return Window{}, errFactory.WithMessage(errors.ErrInvalidWindow,
			"window end precedes window start")
	}

	if len(days) == 0 {
		return Window{}, errFactory.WithMessage(errors.ErrInvalidWindow,
			"no operational days configured")
	}
	daySet := make(map[time.Weekday]bool, len(days))
	for _, name := range days {
		day, ok := dayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return Window{}, errFactory.WithData(errors.ErrInvalidWindow, name)
		}
		daySet[day] = true
	}

	return Window{start: startMin, end: endMin, days: daySet}, nil
}

// Contains reports whether t falls inside the operational window.
func (w Window) Contains(t time.Time) bool {
	if !w.days[t.Weekday()] {
		return false
	}
	minute := t.Hour()*minutesPerHour + t.Minute()

	return minute >= w.start && minute <= w.end
}

// End returns the moment the window closes on t's day. A run started
// inside the window must not outlive it: the unbounded sync retry loop is
// cut off here so it cannot hold the instance guard into the next day.
func (w Window) End(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		w.end/minutesPerHour, w.end%minutesPerHour, 0, 0, t.Location())
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}

	return t.Hour()*minutesPerHour + t.Minute(), nil
}
