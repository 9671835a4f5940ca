// Package memory is an in-process AggregateExporter that keeps the last
// export of each view. It backs tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"treecensus/internal/core"
	ports "treecensus/internal/sheets"
)

type Exporter struct {
	mu       sync.Mutex
	health   [][]any
	stewards [][]any
	exports  int
	err      error
}

var _ ports.AggregateExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// FailWith makes every following export return err.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *Exporter) ExportHealth(_ context.Context, rows []core.HealthAggregate) (string, error) {
	return e.store(&e.health, "Health", ports.HealthValues(rows))
}

func (e *Exporter) ExportStewards(_ context.Context, rows []core.StewardAggregate) (string, error) {
	return e.store(&e.stewards, "Stewards", ports.StewardValues(rows))
}

func (e *Exporter) store(dst *[][]any, sheet string, values [][]any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	*dst = values
	e.exports++
	return fmt.Sprintf("mem:%s!A1:%c%d", sheet, 'A'+len(values[0])-1, len(values)), nil
}

// Health returns the last exported health table, header included.
func (e *Exporter) Health() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.health...)
}

// Stewards returns the last exported steward table, header included.
func (e *Exporter) Stewards() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.stewards...)
}

// Exports counts successful export calls.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
