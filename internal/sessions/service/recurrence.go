package service

import (
	"fmt"
	"slices"
	"strings"
	"time"
	sessionerrors "tourbook/internal/sessions/errors"
	"tourbook/pkg/model"

	"github.com/teambition/rrule-go"
)

const rrulePrefix = "RRULE:"

// scheduleLocation resolves the schedule's time zone, defaulting to UTC.
func scheduleLocation(sc *model.Schedule) (*time.Location, error) {
	if sc.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(sc.TimeZone)
}

// dateWindow turns [from, to] into calendar dates and clamps them to the schedule's
// validity period. ok is false when the two do not overlap.
func dateWindow(sc *model.Schedule, loc *time.Location, from, to time.Time) (fromDate, toDate string, ok bool) {
	fromDate = from.Format(model.DateLayout)
	toDate = to.Format(model.DateLayout)
	if sc.ValidFrom != nil {
		fromDate = max(fromDate, sc.ValidFrom.In(loc).Format(model.DateLayout))
	}
	if sc.ValidUntil != nil {
		toDate = min(toDate, sc.ValidUntil.In(loc).Format(model.DateLayout))
	}
	return fromDate, toDate, fromDate <= toDate
}

// ResolveDates lists the YYYY-MM-DD dates a schedule produces inside [from, to], both
// ends inclusive. from and to are read as calendar dates; occurrences are evaluated in
// the schedule's own time zone. Explicit dates take precedence over the recurrence rule.
func ResolveDates(sc *model.Schedule, from, to time.Time) ([]string, error) {
	loc, err := scheduleLocation(sc)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q", sessionerrors.ErrInvalidRecurrence, sc.TimeZone)
	}

	fromDate, toDate, ok := dateWindow(sc, loc, from, to)
	if !ok {
		return nil, nil
	}

	if len(sc.Dates) > 0 {
		var dates []string
		for _, d := range sc.Dates {
			if d >= fromDate && d <= toDate {
				dates = append(dates, d)
			}
		}
		slices.Sort(dates)
		return slices.Compact(dates), nil
	}

	if sc.RRule == "" {
		return nil, nil
	}
	return expandRule(sc, loc, fromDate, toDate)
}

func expandRule(sc *model.Schedule, loc *time.Location, fromDate, toDate string) ([]string, error) {
	opt, err := rrule.StrToROptionInLocation(strings.TrimPrefix(strings.TrimSpace(sc.RRule), rrulePrefix), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessionerrors.ErrInvalidRecurrence, err)
	}

	dayStart, err := time.ParseInLocation(model.DateLayout, fromDate, loc)
	if err != nil {
		return nil, err
	}
	dayEnd, err := time.ParseInLocation(model.DateLayout, toDate, loc)
	if err != nil {
		return nil, err
	}
	dayEnd = dayEnd.Add(24*time.Hour - time.Second)

	if opt.Dtstart.IsZero() {
		opt.Dtstart = atClock(ruleAnchor(sc, dayStart), sc.Template.StartTime, loc)
	}

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessionerrors.ErrInvalidRecurrence, err)
	}

	var dates []string
	for _, occurrence := range rule.Between(dayStart, dayEnd, true) {
		dates = append(dates, occurrence.In(loc).Format(model.DateLayout))
	}
	return slices.Compact(dates), nil
}

// ruleAnchor picks the first day of a rule without DTSTART. It must not depend on the
// query window, or BYDAY-less and INTERVAL/COUNT rules drift between overlapping windows.
func ruleAnchor(sc *model.Schedule, fallback time.Time) time.Time {
	switch {
	case sc.ValidFrom != nil:
		return *sc.ValidFrom
	case !sc.CreatedAt.IsZero():
		return sc.CreatedAt
	default:
		return fallback
	}
}

// atClock moves day to the HH:MM clock time in loc. An unparsable clock keeps midnight.
func atClock(day time.Time, clock string, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}
