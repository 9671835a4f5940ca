// Package web embeds the dashboard page, the charts partial and the static
// assets that drive Plotly and htmx in the browser.
package web

import "embed"

// TemplatesFS holds index.html and the charts partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.js and style.css.
//
//go:embed static/*
var StaticFS embed.FS
