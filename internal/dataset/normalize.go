// Package dataset turns raw census rows into the immutable, aggregated data
// context the dashboard queries.
package dataset

import (
	"fmt"
	"sort"

	"treecensus/internal/core"
)

// Table is a flat list of normalized records. Callers treat it as read-only.
type Table []core.TreeRecord

// maxRejectionSamples bounds how many offending rows a Report keeps.
const maxRejectionSamples = 10

// Rejection describes a row dropped because a category value was outside the
// fixed enumerations.
type Rejection struct {
	Borough string
	Species string
	Health  string
	Steward string
	Reason  string
}

// Report summarizes what normalization kept and dropped.
type Report struct {
	Input            int
	Kept             int
	DroppedMissing   int
	RejectedCategory int
	Samples          []Rejection
}

// Normalize concatenates raw rows into a Table. Rows missing health or
// species are dropped silently. Rows whose borough, health or steward fall
// outside the fixed sets (a missing steward included) are rejected and
// recorded in the report. The result is stably sorted by health.
func Normalize(raw []core.RawRecord) (Table, Report) {
	rep := Report{Input: len(raw)}
	out := make(Table, 0, len(raw))

	for _, r := range raw {
		species, okSpecies := core.Field(r.Species)
		healthRaw, okHealth := core.Field(r.Health)
		if !okSpecies || !okHealth {
			rep.DroppedMissing++
			continue
		}
		stewardRaw, _ := core.Field(r.Steward)

		rec := core.TreeRecord{
			Borough: r.Borough,
			Species: species,
			Count:   r.Count.Int64(),
		}

		var reason string
		if h, err := core.ParseHealth(healthRaw); err != nil {
			reason = err.Error()
		} else {
			rec.Health = h
		}
		if reason == "" {
			if s, err := core.ParseSteward(stewardRaw); err != nil {
				reason = err.Error()
			} else {
				rec.Steward = s
			}
		}
		if reason == "" {
			if err := rec.Validate(); err != nil {
				reason = err.Error()
			}
		}
		if reason != "" {
			rep.RejectedCategory++
			if len(rep.Samples) < maxRejectionSamples {
				rep.Samples = append(rep.Samples, Rejection{
					Borough: string(r.Borough),
					Species: species,
					Health:  healthRaw,
					Steward: stewardRaw,
					Reason:  reason,
				})
			}
			continue
		}
		out = append(out, rec)
	}

	sortByHealth(out)
	rep.Kept = len(out)
	return out, rep
}

// NormalizeStrict is Normalize, but any category rejection is an error.
func NormalizeStrict(raw []core.RawRecord) (Table, Report, error) {
	t, rep := Normalize(raw)
	if rep.RejectedCategory > 0 {
		first := rep.Samples[0]
		return nil, rep, fmt.Errorf("%w: %d rows rejected, first: %s (borough=%q species=%q)",
			core.ErrUnknownCategory, rep.RejectedCategory, first.Reason, first.Borough, first.Species)
	}
	return t, rep, nil
}

// NormalizeTable re-applies the normalization rules to an existing table.
// It is idempotent: a normalized table comes back unchanged.
func NormalizeTable(t Table) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		if r.Validate() != nil {
			continue
		}
		out = append(out, r)
	}
	sortByHealth(out)
	return out
}

func sortByHealth(t Table) {
	sort.SliceStable(t, func(i, j int) bool {
		return t[i].Health.Rank() < t[j].Health.Rank()
	})
}
