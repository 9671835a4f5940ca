// Package http serves the tree census dashboard and its JSON API.
//
// This file holds the request parsing shared by the page, the HTMX partial
// and the API handlers.

package http

import (
	"errors"
	"fmt"
	"net/url"
	"unicode/utf8"

	"treecensus/internal/chart"
	"treecensus/internal/dataset"
)

const maxSpeciesLength = 128

// ErrInvalidSelection marks selector values the dashboard cannot serve.
var ErrInvalidSelection = errors.New("invalid selection")

// ParseSelection reads borough and species from query and resolves defaults
// against ds. An unknown borough is an error; an unknown species is not.
func ParseSelection(query url.Values, ds *dataset.Dataset) (chart.Selection, error) {
	borough := sanitizeInput(query.Get("borough"))
	species := sanitizeInput(query.Get("species"))

	if utf8.RuneCountInString(species) > maxSpeciesLength {
		return chart.Selection{}, fmt.Errorf("%w: species longer than %d characters", ErrInvalidSelection, maxSpeciesLength)
	}

	sel, err := chart.NewSelection(borough, species)
	if err != nil {
		return chart.Selection{}, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}
	sel, err = sel.Resolve(ds)
	if err != nil {
		return chart.Selection{}, fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}
	return sel, nil
}

// SelectionQuery encodes sel back into query parameters.
func SelectionQuery(sel chart.Selection) string {
	q := url.Values{}
	q.Set("borough", string(sel.Borough))
	q.Set("species", sel.Species)
	return q.Encode()
}
