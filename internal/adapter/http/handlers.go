package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/od-flow-service/internal/adapter/csvfile"
	"github.com/couchcryptid/od-flow-service/internal/domain"
	"github.com/goccy/go-json"
)

// Error codes returned in the {code, message} body.
const (
	codeInvalidParam  = "INVALID_PARAMETER"
	codeNotLoaded     = "DATASET_NOT_LOADED"
	codeNoPublisher   = "PUBLISHER_DISABLED"
	codePublishFailed = "PUBLISH_FAILED"
	codeInternal      = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type zonesResponse struct {
	Origins         []string `json:"origins"`
	Destinations    []string `json:"destinations"`
	DefaultOrigin   string   `json:"default_origin"`
	AllZonesLabel   string   `json:"all_zones_label"`
	ExcludeSameZone bool     `json:"exclude_same_zone"`
}

type publishResponse struct {
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	ComputedAt time.Time `json:"computed_at"`
}

// handleZones lists the selectable zones. With exclude_same_zone (the
// default) a zone that only appears in same-zone rows is not offered.
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	exclude, err := parseExcludeSameZone(r.URL.Query())
	if err != nil {
		var pe *ParamError
		errors.As(err, &pe)
		respondError(w, http.StatusBadRequest, codeInvalidParam, pe.Message, pe.Field)
		return
	}
	snap := s.data.Snapshot()
	if snap.Len() == 0 {
		respondError(w, http.StatusServiceUnavailable, codeNotLoaded, "dataset has not been loaded yet", "")
		return
	}
	origins, destinations := domain.Zones(domain.Filter(snap.Records, exclude, "", ""))
	writeJSON(w, http.StatusOK, zonesResponse{
		Origins:         origins,
		Destinations:    destinations,
		DefaultOrigin:   s.opts.DefaultOrigin,
		AllZonesLabel:   domain.AllZonesLabel,
		ExcludeSameZone: exclude,
	})
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r, "flows")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r, "export")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvfile.ExportFileName))
	w.WriteHeader(http.StatusOK)
	if err := csvfile.WriteExport(w, sel.Flows); err != nil {
		s.logger.Error("write export failed", "error", err)
	}
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r, "geojson")
	if !ok {
		return
	}
	body, err := flowsToGeoJSON(sel.Flows).MarshalJSON()
	if err != nil {
		s.logger.Error("encode geojson failed", "error", err)
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to encode geojson", "")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.opts.Publisher == nil {
		respondError(w, http.StatusServiceUnavailable, codeNoPublisher, "selection publishing is not enabled", "")
		return
	}
	sel, ok := s.selection(w, r, "publish")
	if !ok {
		return
	}
	if err := s.opts.Publisher.PublishSelection(r.Context(), sel); err != nil {
		s.logger.Error("publish selection failed", "error", err)
		respondError(w, http.StatusBadGateway, codePublishFailed, "failed to publish selection", "")
		return
	}
	writeJSON(w, http.StatusAccepted, publishResponse{
		Status:     "published",
		Rows:       sel.RowCount,
		ComputedAt: sel.ComputedAt,
	})
}

// selection parses the query and recomputes the selection over the current
// snapshot. On failure it has already written the error response.
func (s *Server) selection(w http.ResponseWriter, r *http.Request, endpoint string) (domain.Selection, bool) {
	params, err := parseFlowQuery(r.URL.Query(), s.opts.DefaultOrigin)
	if err != nil {
		var pe *ParamError
		if errors.As(err, &pe) {
			respondError(w, http.StatusBadRequest, codeInvalidParam, pe.Message, pe.Field)
		} else {
			respondError(w, http.StatusBadRequest, codeInvalidParam, err.Error(), "")
		}
		return domain.Selection{}, false
	}

	snap := s.data.Snapshot()
	if snap.Len() == 0 {
		respondError(w, http.StatusServiceUnavailable, codeNotLoaded, "dataset has not been loaded yet", "")
		return domain.Selection{}, false
	}

	start := time.Now()
	sel := domain.Select(snap.Records, params)
	if m := s.opts.Metrics; m != nil {
		m.SelectionDuration.Observe(time.Since(start).Seconds())
		m.SelectionRows.Observe(float64(sel.RowCount))
		m.Selections.WithLabelValues(endpoint).Inc()
	}
	s.logger.Debug("selection computed",
		"endpoint", endpoint,
		"origin", params.Origin,
		"destination", params.Destination,
		"exclude_same_zone", params.ExcludeSameZone,
		"top_n", params.TopN,
		"rows", sel.RowCount,
	)
	return sel, true
}

func respondError(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message, Field: field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
