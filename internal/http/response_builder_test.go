package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"treecensus/internal/chart"
	"treecensus/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusAccepted).
		Body([]byte("test")).
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != "test" {
		t.Errorf("Body = %q, want %q", w.Body.String(), "test")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should not be set without triggers")
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()
	sel := chart.Selection{Borough: core.Queens, Species: "pin oak"}

	NewHTMXResponse().
		TriggerChartsUpdated(sel).
		TriggerEmptySelection(sel).
		PushURL("/?" + SelectionQuery(sel)).
		BodyHTML([]byte("<section></section>")).
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}

	var got chart.Selection
	if err := json.Unmarshal(triggers["charts:updated"], &got); err != nil || got != sel {
		t.Errorf("charts:updated = %s (%v)", triggers["charts:updated"], err)
	}
	if !strings.Contains(string(triggers["show-notification"]), `"type":"info"`) {
		t.Errorf("show-notification = %s", triggers["show-notification"])
	}
	if w.Header().Get("HX-Push-Url") != "/?borough=Queens&species=pin+oak" {
		t.Errorf("HX-Push-Url = %q", w.Header().Get("HX-Push-Url"))
	}
	if w.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *HTMXResponseBuilder
		status  int
	}{
		{name: "bad request", builder: BadRequestError(`borough "<x>"`), status: http.StatusBadRequest},
		{name: "internal", builder: InternalServerError("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if strings.Contains(w.Body.String(), "<x>") {
				t.Errorf("message not escaped: %s", w.Body.String())
			}
			if !strings.HasPrefix(w.Body.String(), `<div class="error">`) {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}
