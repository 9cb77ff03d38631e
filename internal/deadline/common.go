package deadline

import (
	"time"

	"lexwatch/monitor-service/internal/calendar"
)

// CommonDeadline is one of the statutory deadline types computed together
// for a newly published decision.
type CommonDeadline struct {
	Name string
	Days int
	Kind Kind
}

// CommonDeadlines lists the standard statutory deadlines, all counted in
// business days.
var CommonDeadlines = []CommonDeadline{
	{Name: "Contestação", Days: 15, Kind: Business},
	{Name: "Apelação", Days: 15, Kind: Business},
	{Name: "Agravo de Instrumento", Days: 15, Kind: Business},
	{Name: "Embargos de Declaração", Days: 5, Kind: Business},
	{Name: "Contrarrazões", Days: 15, Kind: Business},
	{Name: "Recurso Inominado (JEC)", Days: 10, Kind: Business},
	{Name: "Manifestação", Days: 5, Kind: Business},
}

// NamedResult pairs a deadline type with its computed result.
type NamedResult struct {
	Name   string
	Days   int
	Result *Result
}

// ComputeCommon resolves every standard deadline from the same start date.
// Each computation is independent; there is no shared mutable state, so the
// set may equally be computed concurrently by the caller.
func ComputeCommon(cal *calendar.Calendar, start time.Time, tribunal string) ([]NamedResult, error) {
	out := make([]NamedResult, 0, len(CommonDeadlines))
	for _, cd := range CommonDeadlines {
		res, err := Compute(cal, Request{Start: start, Days: cd.Days, Kind: cd.Kind, Tribunal: tribunal})
		if err != nil {
			return nil, err
		}
		out = append(out, NamedResult{Name: cd.Name, Days: cd.Days, Result: res})
	}
	return out, nil
}
