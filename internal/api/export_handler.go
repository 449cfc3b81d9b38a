package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/popup-engine/internal/pkg/httputil"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// HandleExportMetrics handles GET /api/activities/{activityID}/metrics/export.
// Streams a CSV attachment with one row per event, enriched with form
// submission summaries per visitor.
func (h *Handlers) HandleExportMetrics(w http.ResponseWriter, r *http.Request) {
	activity, ok := h.authorizedActivity(w, r)
	if !ok {
		return
	}

	req, ok := parseQueryRequest(w, r, activity.ID)
	if !ok {
		return
	}
	if r.URL.Query().Get("limit") == "" {
		// Unlike the paged listing, an export defaults to the full
		// (capped) result set.
		req.Limit = 0
	}

	filename := fmt.Sprintf("activity-%s-metrics-%s.csv", activity.ID, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	err := h.exporter.ExportCSV(r.Context(), w, metrics.ExportRequest{
		ActivityID: activity.ID,
		Filter:     req.Filter,
		Limit:      req.Limit,
		Skip:       req.Skip,
	})
	if err != nil {
		// Headers may already be out; too late for a clean error payload.
		httputil.InternalError(w, err)
		return
	}
}
