package sheets

import (
	"context"

	"treecensus/internal/core"
)

// Ports for outbound adapters.
type (
	// AggregateExporter publishes the two aggregate views to a spreadsheet.
	// Each call replaces the previous contents of its sheet and returns the
	// range that was written.
	AggregateExporter interface {
		ExportHealth(ctx context.Context, rows []core.HealthAggregate) (writtenRange string, err error)
		ExportStewards(ctx context.Context, rows []core.StewardAggregate) (writtenRange string, err error)
	}
)

// Column headers of the exported sheets.
var (
	HealthHeader  = []string{"Borough", "Health", "Species", "Count"}
	StewardHeader = []string{"Borough", "Health", "Species", "Steward", "Count"}
)

// HealthValues lays out health rows under HealthHeader.
func HealthValues(rows []core.HealthAggregate) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, header(HealthHeader))
	for _, r := range rows {
		out = append(out, []any{string(r.Borough), string(r.Health), r.Species, r.Count})
	}
	return out
}

// StewardValues lays out steward rows under StewardHeader.
func StewardValues(rows []core.StewardAggregate) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, header(StewardHeader))
	for _, r := range rows {
		out = append(out, []any{string(r.Borough), string(r.Health), r.Species, string(r.Steward), r.Count})
	}
	return out
}

func header(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
