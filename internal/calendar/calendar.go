// Package calendar holds the jurisdiction-keyed table of non-business days:
// weekends, national and tribunal-specific holidays, and suspension
// intervals during which procedural deadlines do not advance.
//
// A Calendar is a read-only snapshot loaded once at startup. Refreshing is
// loading a new snapshot; existing snapshots are never mutated, which keeps
// IsBusinessDay pure.
package calendar

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lexwatch/monitor-service/internal/model"
)

//go:embed defaults.yaml
var defaultDataset []byte

// Holiday is a single non-business day.
type Holiday struct {
	Date  time.Time
	Scope string // model.ScopeNational or a tribunal sigla
	Label string
}

// Suspension is a date interval (inclusive on both ends) during which
// deadlines do not advance for the matching scope.
type Suspension struct {
	Start  time.Time
	End    time.Time
	Scope  string
	Reason string
}

// Calendar is the loaded snapshot.
type Calendar struct {
	holidays    map[string][]Holiday // key: YYYY-MM-DD
	suspensions []Suspension
}

type datasetFile struct {
	Holidays []struct {
		Date  string `yaml:"date"`
		Scope string `yaml:"scope"`
		Label string `yaml:"label"`
	} `yaml:"holidays"`
	Suspensions []struct {
		Start  string `yaml:"start"`
		End    string `yaml:"end"`
		Scope  string `yaml:"scope"`
		Reason string `yaml:"reason"`
	} `yaml:"suspensions"`
}

// Default loads the embedded dataset.
func Default() (*Calendar, error) {
	return parse(defaultDataset)
}

// Load reads a YAML dataset from path.
func Load(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar dataset: %w", err)
	}
	cal, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("calendar dataset %s: %w", path, err)
	}
	return cal, nil
}

func parse(data []byte) (*Calendar, error) {
	var f datasetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	cal := &Calendar{holidays: make(map[string][]Holiday)}

	for _, h := range f.Holidays {
		date, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday date %q: %w", h.Date, err)
		}
		scope := h.Scope
		if scope == "" {
			scope = model.ScopeNational
		}
		key := date.Format("2006-01-02")
		cal.holidays[key] = append(cal.holidays[key], Holiday{Date: date, Scope: scope, Label: h.Label})
	}

	for _, s := range f.Suspensions {
		start, err := time.Parse("2006-01-02", s.Start)
		if err != nil {
			return nil, fmt.Errorf("suspension start %q: %w", s.Start, err)
		}
		end, err := time.Parse("2006-01-02", s.End)
		if err != nil {
			return nil, fmt.Errorf("suspension end %q: %w", s.End, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("suspension %q ends before it starts", s.Reason)
		}
		scope := s.Scope
		if scope == "" {
			scope = model.ScopeNational
		}
		cal.suspensions = append(cal.suspensions, Suspension{Start: start, End: end, Scope: scope, Reason: s.Reason})
	}

	return cal, nil
}

func scopeMatches(scope, tribunal string) bool {
	return scope == model.ScopeNational || scope == tribunal
}

// DateOnly normalises a time to midnight UTC so date comparisons ignore the
// clock and zone of the input.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HolidayOn returns the holiday in effect on date for the tribunal, if any.
func (c *Calendar) HolidayOn(date time.Time, tribunal string) (Holiday, bool) {
	for _, h := range c.holidays[date.Format("2006-01-02")] {
		if scopeMatches(h.Scope, tribunal) {
			return h, true
		}
	}
	return Holiday{}, false
}

// SuspensionOn returns the suspension interval covering date for the
// tribunal, if any.
func (c *Calendar) SuspensionOn(date time.Time, tribunal string) (Suspension, bool) {
	d := DateOnly(date)
	for _, s := range c.suspensions {
		if !scopeMatches(s.Scope, tribunal) {
			continue
		}
		if !d.Before(s.Start) && !d.After(s.End) {
			return s, true
		}
	}
	return Suspension{}, false
}

// IsBusinessDay reports whether date counts toward deadlines for the
// tribunal: not a weekend, not a matching holiday, not inside a matching
// suspension interval.
func (c *Calendar) IsBusinessDay(date time.Time, tribunal string) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if _, ok := c.HolidayOn(date, tribunal); ok {
		return false
	}
	if _, ok := c.SuspensionOn(date, tribunal); ok {
		return false
	}
	return true
}
