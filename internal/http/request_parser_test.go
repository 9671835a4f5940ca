package http

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"treecensus/internal/chart"
	"treecensus/internal/core"
	"treecensus/internal/dataset"
)

func TestParseSelection(t *testing.T) {
	ds := testDataset(t)

	tests := []struct {
		name    string
		query   string
		want    chart.Selection
		wantErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want:  chart.Selection{Borough: core.Bronx, Species: "Amur cork tree"},
		},
		{
			name:  "explicit values",
			query: "borough=Staten+Island&species=pin+oak",
			want:  chart.Selection{Borough: core.StatenIsland, Species: "pin oak"},
		},
		{
			name:  "whitespace and control characters",
			query: "borough=%20Queens%20&species=pin%00%20oak",
			want:  chart.Selection{Borough: core.Queens, Species: "pin oak"},
		},
		{
			name:  "unknown species kept",
			query: "borough=Manhattan&species=baobab",
			want:  chart.Selection{Borough: core.Manhattan, Species: "baobab"},
		},
		{
			name:    "unknown borough",
			query:   "borough=Atlantis",
			wantErr: true,
		},
		{
			name:    "species too long",
			query:   "species=" + strings.Repeat("a", maxSpeciesLength+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got, err := ParseSelection(q, ds)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSelection) {
					t.Fatalf("ParseSelection() error = %v, want ErrInvalidSelection", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSelection() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSelection() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSelection_DefaultSpeciesFallsBackToFirst(t *testing.T) {
	ds, _, err := dataset.Build([]core.RawRecord{
		{Borough: core.Bronx, Species: core.Str("pin oak"), Health: core.Str("Good"), Steward: core.Str("None"), Count: core.Count(1)},
		{Borough: core.Bronx, Species: core.Str("ginkgo"), Health: core.Str("Good"), Steward: core.Str("None"), Count: core.Count(1)},
	}, dataset.BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseSelection(url.Values{}, ds)
	if err != nil {
		t.Fatal(err)
	}
	if got.Species != "ginkgo" {
		t.Errorf("default species = %q, want ginkgo", got.Species)
	}
}

func TestSelectionQuery(t *testing.T) {
	got := SelectionQuery(chart.Selection{Borough: core.StatenIsland, Species: "pin oak"})
	if got != "borough=Staten+Island&species=pin+oak" {
		t.Errorf("SelectionQuery() = %q", got)
	}
}
