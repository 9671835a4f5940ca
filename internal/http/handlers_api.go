package http

import (
	"net/http"

	"treecensus/internal/chart"
	"treecensus/internal/core"
	"treecensus/internal/dataset"
)

type healthQueryResponse struct {
	Selection chart.Selection    `json:"selection"`
	Rows      []core.HealthCount `json:"rows"`
	Total     int64              `json:"total"`
}

type stewardQueryResponse struct {
	Selection chart.Selection      `json:"selection"`
	Rows      []core.StewardCount  `json:"rows"`
	Series    []core.StewardSeries `json:"series"`
	Total     int64                `json:"total"`
}

type speciesResponse struct {
	Borough core.Borough `json:"borough,omitempty"`
	Species []string     `json:"species"`
}

// apiSelection writes a 400 and returns false on an invalid selection.
func (s *Server) apiSelection(w http.ResponseWriter, r *http.Request) (chart.Selection, bool) {
	sel, err := s.selection(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return chart.Selection{}, false
	}
	return sel, true
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.apiSelection(w, r)
	if !ok {
		return
	}
	rows := s.dataset.QueryHealth(sel.Borough, sel.Species)
	writeJSON(w, r, http.StatusOK, healthQueryResponse{
		Selection: sel,
		Rows:      rows,
		Total:     dataset.Total(rows),
	})
}

func (s *Server) handleAPIStewards(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.apiSelection(w, r)
	if !ok {
		return
	}
	rows := s.dataset.QueryStewards(sel.Borough, sel.Species)
	writeJSON(w, r, http.StatusOK, stewardQueryResponse{
		Selection: sel,
		Rows:      rows,
		Series:    dataset.SeriesBySteward(rows),
		Total:     dataset.TotalStewards(rows),
	})
}

// handleAPISpecies lists every species, or those seen in ?borough= when set.
func (s *Server) handleAPISpecies(w http.ResponseWriter, r *http.Request) {
	raw := sanitizeInput(r.URL.Query().Get("borough"))
	if raw == "" {
		writeJSON(w, r, http.StatusOK, speciesResponse{Species: nonNil(s.dataset.Species())})
		return
	}
	b, err := core.ParseBorough(raw)
	if err != nil {
		s.metrics.SelectionErrors.Inc()
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, speciesResponse{Borough: b, Species: nonNil(s.dataset.SpeciesIn(b))})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) handleAPIFigures(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.apiSelection(w, r)
	if !ok {
		return
	}
	v, err := s.figuresFor(r, sel)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to render figures")
		return
	}
	writeJSON(w, r, http.StatusOK, v.Figures)
}

// handleAPIDashboard returns the full view model: selector options plus
// both figures.
func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.apiSelection(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, chart.Build(s.dataset, sel))
}
