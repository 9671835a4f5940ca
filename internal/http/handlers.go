package http

import (
	"context"
	"net/http"
	"time"

	"treecensus/internal/log"
)

const storePingTimeout = 2 * time.Second

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

type readyResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Checks    readyChecks `json:"checks"`
}

type readyChecks struct {
	Dataset     datasetCheck  `json:"dataset"`
	FigureCache cacheCheck    `json:"figure_cache"`
	RateLimiter limiterCheck  `json:"rate_limiter"`
	Snapshot    snapshotCheck `json:"snapshot"`
	Store       *storeCheck   `json:"store,omitempty"`
}

type storeCheck struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type datasetCheck struct {
	SnapshotID string `json:"snapshot_id,omitempty"`
	BuiltAt    string `json:"built_at"`
	Rows       int    `json:"rows"`
	Trees      int64  `json:"trees"`
	Species    int    `json:"species"`
}

type cacheCheck struct {
	Entries  int     `json:"entries"`
	HitRatio float64 `json:"hit_ratio"`
}

type limiterCheck struct {
	ActiveClients int `json:"active_clients"`
}

type snapshotCheck struct {
	Watching      bool   `json:"watching"`
	Connected     bool   `json:"connected"`
	Announcements uint64 `json:"announcements"`
	LatestID      string `json:"latest_id,omitempty"`
	Behind        bool   `json:"behind"`
}

// handleReady reports the served dataset, the snapshot store and whether a
// newer snapshot has been announced. The dataset lives in memory, so a stale
// dataset or an unreachable store still serves: it stays 200 with status
// "behind" or "degraded".
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	meta := s.dataset.Meta()
	stats := s.figures.Stats()

	resp := readyResponse{
		Status:    "ready",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks: readyChecks{
			Dataset: datasetCheck{
				SnapshotID: meta.SnapshotID,
				BuiltAt:    meta.BuiltAt.Format(time.RFC3339),
				Rows:       meta.Rows,
				Trees:      meta.TotalTrees,
				Species:    meta.SpeciesSeen,
			},
			FigureCache: cacheCheck{Entries: stats.Size, HitRatio: stats.HitRatio()},
			RateLimiter: limiterCheck{ActiveClients: s.rateLimiter.ActiveClients()},
		},
	}

	if s.watcher != nil {
		snap := snapshotCheck{
			Watching:      true,
			Connected:     s.watcher.Connected(),
			Announcements: s.watcher.Received(),
			Behind:        s.behind(),
		}
		if latest, ok := s.watcher.Latest(); ok {
			snap.LatestID = latest.SnapshotID
		}
		resp.Checks.Snapshot = snap
		if snap.Behind {
			resp.Status = "behind"
		}
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storePingTimeout)
		err := s.store.Ping(ctx)
		cancel()

		check := &storeCheck{Reachable: err == nil}
		if err != nil {
			check.Error = err.Error()
			resp.Status = "degraded"
			log.FromContext(r.Context()).WarnContext(r.Context(), "Snapshot store unreachable", log.FieldError, err)
		}
		resp.Checks.Store = check
	}

	writeJSON(w, r, http.StatusOK, resp)
}
