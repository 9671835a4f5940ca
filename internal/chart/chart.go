package chart

import (
	"fmt"
	"strings"

	"treecensus/internal/core"
	"treecensus/internal/dataset"
)

const (
	// DefaultBorough is selected when no borough is given.
	DefaultBorough = core.Bronx
	// PreferredSpecies is selected when no species is given and the dataset
	// contains it.
	PreferredSpecies = "Amur cork tree"

	countAxisTitle  = "Number of trees"
	healthAxisTitle = "Health"
	stewardLegend   = "Stewards"
)

// Selection is the pair of selector values driving both charts.
type Selection struct {
	Borough core.Borough `json:"borough"`
	Species string       `json:"species"`
}

// NewSelection parses raw selector values. Empty values are kept empty so
// that Resolve can apply defaults.
func NewSelection(borough, species string) (Selection, error) {
	sel := Selection{Species: strings.TrimSpace(species)}
	if strings.TrimSpace(borough) != "" {
		b, err := core.ParseBorough(borough)
		if err != nil {
			return Selection{}, err
		}
		sel.Borough = b
	}
	return sel, nil
}

// Resolve fills in defaults against ds. An unknown species is kept as-is and
// produces empty charts.
func (s Selection) Resolve(ds *dataset.Dataset) (Selection, error) {
	switch {
	case s.Borough == "":
		s.Borough = DefaultBorough
	case !s.Borough.Valid():
		return Selection{}, fmt.Errorf("%w: %q", core.ErrUnknownBorough, s.Borough)
	}
	if s.Species == "" {
		s.Species = DefaultSpecies(ds)
	}
	return s, nil
}

// Key identifies the selection in caches.
func (s Selection) Key() string {
	return string(s.Borough) + "|" + s.Species
}

// DefaultSpecies returns PreferredSpecies when present, otherwise the first
// species in sort order, or "" for an empty dataset.
func DefaultSpecies(ds *dataset.Dataset) string {
	if ds.HasSpecies(PreferredSpecies) {
		return PreferredSpecies
	}
	if sp := ds.Species(); len(sp) > 0 {
		return sp[0]
	}
	return ""
}

// Option is one entry of a selector.
type Option struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Selected bool   `json:"selected,omitempty"`
}

// Dashboard is the view model rendered by the page and the charts partial.
type Dashboard struct {
	Selection Selection `json:"selection"`
	Boroughs  []Option  `json:"boroughs"`
	Species   []Option  `json:"species"`
	Health    Figure    `json:"health"`
	Stewards  Figure    `json:"stewards"`
}

// Figures is the chart-only part of a Dashboard.
type Figures struct {
	Selection Selection `json:"selection"`
	Health    Figure    `json:"health"`
	Stewards  Figure    `json:"stewards"`
}

// Build runs both queries for sel and assembles the dashboard. sel should
// already be resolved.
func Build(ds *dataset.Dataset, sel Selection) Dashboard {
	f := BuildFigures(ds, sel)
	return Dashboard{
		Selection: sel,
		Boroughs:  BoroughOptions(sel.Borough),
		Species:   SpeciesOptions(ds.Species(), sel.Species),
		Health:    f.Health,
		Stewards:  f.Stewards,
	}
}

// BuildFigures runs both queries for sel and renders the two figures.
func BuildFigures(ds *dataset.Dataset, sel Selection) Figures {
	return Figures{
		Selection: sel,
		Health:    HealthFigure(sel, ds.QueryHealth(sel.Borough, sel.Species)),
		Stewards:  StewardFigure(sel, dataset.SeriesBySteward(ds.QueryStewards(sel.Borough, sel.Species))),
	}
}

func BoroughOptions(selected core.Borough) []Option {
	bs := core.Boroughs()
	out := make([]Option, 0, len(bs))
	for _, b := range bs {
		out = append(out, Option{Label: string(b), Value: string(b), Selected: b == selected})
	}
	return out
}

func SpeciesOptions(species []string, selected string) []Option {
	out := make([]Option, 0, len(species))
	for _, s := range species {
		out = append(out, Option{Label: s, Value: s, Selected: s == selected})
	}
	return out
}

// HealthTitle is the health chart title.
func HealthTitle(sel Selection) string {
	return fmt.Sprintf("Health of %s trees in %s", sel.Species, sel.Borough)
}

// StewardTitle is the steward chart title.
func StewardTitle(sel Selection) string {
	return HealthTitle(sel) + " by Number of Stewards"
}

// HealthFigure draws one bar per health level, labelled with the level.
func HealthFigure(sel Selection, rows []core.HealthCount) Figure {
	x, y := healthPoints(rows)
	return Figure{
		Data: []Trace{{
			Type:         "bar",
			X:            x,
			Y:            y,
			Text:         x,
			TextPosition: "auto",
			Marker:       &Marker{Color: defaultColors[0]},
		}},
		Layout: baseLayout(HealthTitle(sel), false),
	}
}

// StewardFigure draws one bar series per steward bucket, grouped by health.
func StewardFigure(sel Selection, series []core.StewardSeries) Figure {
	traces := make([]Trace, 0, len(series))
	for i, s := range series {
		x, y := healthPoints(s.Points)
		traces = append(traces, Trace{
			Type:         "bar",
			Name:         string(s.Steward),
			X:            x,
			Y:            y,
			Text:         x,
			TextPosition: "auto",
			Marker:       &Marker{Color: defaultColors[i%len(defaultColors)]},
		})
	}
	layout := baseLayout(StewardTitle(sel), true)
	layout.Legend = &Legend{Title: Title{Text: stewardLegend}}
	return Figure{Data: traces, Layout: layout}
}

func healthPoints(rows []core.HealthCount) ([]string, []int64) {
	x := make([]string, 0, len(rows))
	y := make([]int64, 0, len(rows))
	for _, r := range rows {
		x = append(x, string(r.Health))
		y = append(y, r.Count)
	}
	return x, y
}

func baseLayout(title string, legend bool) Layout {
	levels := core.Healths()
	order := make([]string, 0, len(levels))
	for _, h := range levels {
		order = append(order, string(h))
	}
	return Layout{
		Title:   Title{Text: title},
		BarMode: "group",
		XAxis: Axis{
			Title:         Title{Text: healthAxisTitle},
			CategoryOrder: "array",
			CategoryArray: order,
		},
		YAxis:      Axis{Title: Title{Text: countAxisTitle}},
		ShowLegend: legend,
	}
}
