package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"treecensus/internal/chart"
	"treecensus/internal/core"
	"treecensus/internal/dataset"
	"treecensus/internal/log"
)

const (
	pageTitle       = "NYC Street Trees"
	pageDescription = "Health of street trees in New York City by borough and species, " +
		"and how stewardship relates to it. Data: 2015 Street Tree Census."
)

// figureView is a cached rendering of both charts for one selection.
type figureView struct {
	chart.Figures
	HealthJSON  string
	StewardJSON string
	Empty       bool
}

type pageData struct {
	Title       string
	Description string
	Boroughs    []chart.Option
	Species     []chart.Option
	Charts      figureView
	Meta        dataset.Meta
}

// figuresFor returns the rendered charts for sel from the cache, building
// them on a miss. The dataset never changes, so entries only age out.
func (s *Server) figuresFor(r *http.Request, sel chart.Selection) (figureView, error) {
	if v, ok := s.figures.Get(sel.Key()); ok {
		return v, nil
	}

	f := chart.BuildFigures(s.dataset, sel)
	health, err := json.Marshal(f.Health)
	if err != nil {
		return figureView{}, fmt.Errorf("encode health figure: %w", err)
	}
	stewards, err := json.Marshal(f.Stewards)
	if err != nil {
		return figureView{}, fmt.Errorf("encode steward figure: %w", err)
	}
	v := figureView{
		Figures:     f,
		HealthJSON:  string(health),
		StewardJSON: string(stewards),
		Empty:       f.Health.Empty(),
	}
	s.figures.Set(sel.Key(), v)

	fields := log.NewFields().WithSelection(string(sel.Borough), sel.Species)
	fields["trees"] = f.Health.Total()
	log.FromContext(r.Context()).DebugContext(r.Context(), "Figures rendered", fields.ToSlice()...)
	return v, nil
}

// selection parses the request selection, counting and logging rejects.
func (s *Server) selection(r *http.Request) (chart.Selection, error) {
	sel, err := ParseSelection(r.URL.Query(), s.dataset)
	if err != nil {
		s.metrics.SelectionErrors.Inc()
		q := r.URL.Query()
		fields := log.NewFields().
			WithSelection(q.Get("borough"), q.Get("species")).
			WithError(err)
		log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid selection", fields.ToSlice()...)
	}
	return sel, err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selection(r)
	if err != nil {
		BadRequestError(selectionMessage(err)).Write(w)
		return
	}
	v, err := s.figuresFor(r, sel)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	data := pageData{
		Title:       pageTitle,
		Description: pageDescription,
		Boroughs:    chart.BoroughOptions(sel.Borough),
		Species:     chart.SpeciesOptions(s.dataset.Species(), sel.Species),
		Charts:      v,
		Meta:        s.dataset.Meta(),
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.renderError(w, r, fmt.Errorf("render index.html: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCharts renders the charts partial swapped in on every selector
// change.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selection(r)
	if err != nil {
		BadRequestError(selectionMessage(err)).Write(w)
		return
	}
	v, err := s.figuresFor(r, sel)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "charts", v); err != nil {
		s.renderError(w, r, fmt.Errorf("render charts: %w", err))
		return
	}

	resp := NewHTMXResponse().
		TriggerChartsUpdated(sel).
		PushURL("/?" + SelectionQuery(sel)).
		BodyHTML(buf.Bytes())
	if v.Empty {
		resp.TriggerEmptySelection(sel)
	}
	resp.Write(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	fields := log.NewFields()
	fields[log.FieldPath] = r.URL.Path
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogError(r.Context(), "Dashboard render failed", err, log.OpRender, fields)
	InternalServerError("Failed to render charts").Write(w)
}

func selectionMessage(err error) string {
	if errors.Is(err, core.ErrUnknownBorough) {
		return "Unknown borough. Choose one of the five boroughs."
	}
	return err.Error()
}
