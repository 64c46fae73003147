package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"xpdash/internal/chart"
	"xpdash/internal/core"
	"xpdash/internal/log"
	"xpdash/internal/services"
)

type chartBuilder func(p services.Profile, vp core.ViewportSpec) (*chart.Geometry, error)

// handleXPChart returns the cumulative XP line chart for the caller's profile.
func (s *Server) handleXPChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, "xp", func(p services.Profile, vp core.ViewportSpec) (*chart.Geometry, error) {
		return chart.BuildLineChart(p.Buckets, vp)
	})
}

// handleSkillsChart returns the skill radar chart for the caller's profile.
func (s *Server) handleSkillsChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, "skills", func(p services.Profile, vp core.ViewportSpec) (*chart.Geometry, error) {
		return chart.BuildRadarChart(p.Skills, vp)
	})
}

func (s *Server) serveChart(w http.ResponseWriter, r *http.Request, name string, build chartBuilder) {
	if rb := RequireGET(r); rb != nil {
		rb.Write(w)
		return
	}

	vp, err := ParseViewport(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, ok := s.apiProfile(w, r)
	if !ok {
		return
	}

	g, err := build(p, vp)
	switch {
	case errors.Is(err, chart.ErrInvalidViewport):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Chart build failed", err, log.ComponentChart, log.OpBuild,
			log.Fields{"chart": name})
		writeJSONError(w, http.StatusInternalServerError, "chart could not be built")
		return
	}
	atomic.AddInt64(&s.appMetrics.chartBuilds, 1)

	if p.Stale {
		w.Header().Set("X-Data-Stale", "true")
	}
	writeJSON(w, http.StatusOK, g)
}
