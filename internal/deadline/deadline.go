// Package deadline computes statutory procedural deadlines from a
// publication date using business-day arithmetic over a loaded calendar.
//
// Computation is a pure function of the request and the calendar snapshot:
// identical inputs always yield identical results, and results are never
// mutated after creation. Silent wrong dates are unacceptable in this
// domain, so every validation failure is an explicit error.
package deadline

import (
	"fmt"
	"time"

	"lexwatch/monitor-service/internal/calendar"
	"lexwatch/monitor-service/internal/model"
)

// Kind selects how the day count is interpreted.
type Kind string

const (
	// Business counts only business days, starting the day after the
	// publication date.
	Business Kind = "business"
	// Calendar counts calendar days, then rolls forward to the next
	// business day if needed.
	Calendar Kind = "calendar"
)

// Request describes one deadline computation.
type Request struct {
	Start    time.Time
	Days     int
	Kind     Kind
	Tribunal string // tribunal sigla or model.ScopeNational
}

// Result is the computed due date plus the audit trail of skipped days.
type Result struct {
	DueDate              time.Time
	BusinessDays         int
	CalendarDays         int
	WeekendsSkipped      int
	HolidaysSkipped      []calendar.Holiday
	SuspendedDaysSkipped int
	Warnings             []string
}

// Compute resolves the due date for req over cal.
func Compute(cal *calendar.Calendar, req Request) (*Result, error) {
	if req.Days <= 0 {
		return nil, fmt.Errorf("day count must be positive, got %d", req.Days)
	}
	if req.Kind != Business && req.Kind != Calendar {
		return nil, fmt.Errorf("unknown day count kind %q", req.Kind)
	}
	if req.Tribunal != model.ScopeNational && !model.KnownTribunal(req.Tribunal) {
		return nil, fmt.Errorf("unknown jurisdiction %q", req.Tribunal)
	}

	start := calendar.DateOnly(req.Start)

	var due time.Time
	switch req.Kind {
	case Calendar:
		due = start.AddDate(0, 0, req.Days)
	case Business:
		// Counting starts the day after publication; each business day
		// consumes one unit of the count.
		remaining := req.Days
		due = start
		for remaining > 0 {
			due = due.AddDate(0, 0, 1)
			if cal.IsBusinessDay(due, req.Tribunal) {
				remaining--
			}
		}
	}

	// Roll-forward rule: a due date landing on a non-business day is pushed
	// to the next business day, so the final due date is always workable.
	for !cal.IsBusinessDay(due, req.Tribunal) {
		due = due.AddDate(0, 0, 1)
	}

	res := &Result{DueDate: due}
	res.CalendarDays = int(due.Sub(start).Hours() / 24)

	// Audit trail: classify every day in (start, due].
	for d := start.AddDate(0, 0, 1); !d.After(due); d = d.AddDate(0, 0, 1) {
		if cal.IsBusinessDay(d, req.Tribunal) {
			res.BusinessDays++
			continue
		}
		// Suspensions take precedence: a suspended Saturday is skipped
		// because of the suspension regime, not the weekend.
		if _, ok := cal.SuspensionOn(d, req.Tribunal); ok {
			res.SuspendedDaysSkipped++
			continue
		}
		if h, ok := cal.HolidayOn(d, req.Tribunal); ok {
			res.HolidaysSkipped = append(res.HolidaysSkipped, h)
			continue
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			res.WeekendsSkipped++
		}
	}

	if _, ok := cal.SuspensionOn(start, req.Tribunal); ok {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("start date %s falls inside a deadline suspension; counting may be legally ambiguous",
				start.Format("2006-01-02")))
	}
	if due.Year() != start.Year() {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("deadline interval spans the %d/%d year boundary", start.Year(), due.Year()))
	}

	return res, nil
}
