// Package chart turns dataset query results into Plotly figure
// definitions for the dashboard.
package chart

// Default color palette for steward series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
}

// Figure is a Plotly figure: traces plus layout, serialized as-is to the
// browser.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one bar series.
type Trace struct {
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`
	X            []string `json:"x"`
	Y            []int64  `json:"y"`
	Text         []string `json:"text,omitempty"`
	TextPosition string   `json:"textposition,omitempty"`
	Marker       *Marker  `json:"marker,omitempty"`
}

type Marker struct {
	Color string `json:"color,omitempty"`
}

type Layout struct {
	Title      Title   `json:"title"`
	BarMode    string  `json:"barmode"`
	XAxis      Axis    `json:"xaxis"`
	YAxis      Axis    `json:"yaxis"`
	ShowLegend bool    `json:"showlegend"`
	Legend     *Legend `json:"legend,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title         Title    `json:"title"`
	CategoryOrder string   `json:"categoryorder,omitempty"`
	CategoryArray []string `json:"categoryarray,omitempty"`
}

type Legend struct {
	Title Title `json:"title"`
}

// Empty reports whether the figure has no data points to draw.
func (f Figure) Empty() bool {
	for _, t := range f.Data {
		if len(t.X) > 0 {
			return false
		}
	}
	return true
}

// Total sums every y value across traces.
func (f Figure) Total() int64 {
	var n int64
	for _, t := range f.Data {
		for _, y := range t.Y {
			n += y
		}
	}
	return n
}
