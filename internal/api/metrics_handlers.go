package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/pkg/httputil"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// DefaultQueryLimit is applied when no limit param is supplied.
const DefaultQueryLimit = 50

// HandleQueryMetrics handles GET /api/activities/{activityID}/metrics.
func (h *Handlers) HandleQueryMetrics(w http.ResponseWriter, r *http.Request) {
	activity, ok := h.authorizedActivity(w, r)
	if !ok {
		return
	}

	req, ok := parseQueryRequest(w, r, activity.ID)
	if !ok {
		return
	}

	res, err := h.engine.Query(r.Context(), req)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

// HandleVisitorSubmissions handles
// GET /api/activities/{activityID}/visitors/{visitorID}/submissions:
// the on-demand correlation when an operator expands a visitor row.
func (h *Handlers) HandleVisitorSubmissions(w http.ResponseWriter, r *http.Request) {
	activity, ok := h.authorizedActivity(w, r)
	if !ok {
		return
	}
	visitorID := chi.URLParam(r, "visitorID")

	subs, err := h.exporter.Correlate(r.Context(), activity.ID, visitorID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"visitorId":   visitorID,
		"submissions": subs,
	})
}

// HandleDeleteMetrics handles DELETE /api/activities/{activityID}/metrics:
// the cascade hook the dashboard calls when an activity is deleted.
func (h *Handlers) HandleDeleteMetrics(w http.ResponseWriter, r *http.Request) {
	activity, ok := h.authorizedActivity(w, r)
	if !ok {
		return
	}

	deleted, err := h.recorder.DeleteActivityData(r.Context(), activity.ID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	// Drop the cached activity so the negative entry takes over promptly.
	if inv, ok := h.activities.(interface {
		Invalidate(ctx context.Context, id string)
	}); ok {
		inv.Invalidate(r.Context(), activity.ID)
	}
	httputil.OK(w, map[string]interface{}{"deleted": deleted})
}

// authorizedActivity loads the activity from the path and verifies the
// session's user can access its project. Writes the error response itself
// when not ok.
func (h *Handlers) authorizedActivity(w http.ResponseWriter, r *http.Request) (*domain.Activity, bool) {
	activityID := chi.URLParam(r, "activityID")

	activity, err := h.activities.Get(r.Context(), activityID)
	if err != nil {
		if errors.Is(err, metrics.ErrActivityNotFound) {
			httputil.NotFound(w, "activity not found")
		} else {
			httputil.InternalError(w, err)
		}
		return nil, false
	}

	session := SessionFrom(r.Context())
	if session == nil {
		httputil.Unauthorized(w)
		return nil, false
	}
	allowed, err := h.verifier.CanAccessProject(r.Context(), session, activity.ProjectID)
	if err != nil {
		httputil.InternalError(w, err)
		return nil, false
	}
	if !allowed {
		httputil.Forbidden(w)
		return nil, false
	}
	return activity, true
}

// parseQueryRequest extracts filter, window and mode from query params.
// Writes a 400 response and returns ok=false on invalid values.
func parseQueryRequest(w http.ResponseWriter, r *http.Request, activityID string) (metrics.QueryRequest, bool) {
	q := r.URL.Query()

	req := metrics.QueryRequest{
		ActivityID: activityID,
		Limit:      DefaultQueryLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid limit")
			return req, false
		}
		req.Limit = n
	}
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid skip")
			return req, false
		}
		req.Skip = n
	}
	req.EventsOnly = q.Get("eventsOnly") == "true"

	if v := q.Get("startDate"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			httputil.BadRequest(w, "invalid startDate")
			return req, false
		}
		req.Filter.Start = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			httputil.BadRequest(w, "invalid endDate")
			return req, false
		}
		req.Filter.End = &t
	}
	if v := q.Get("eventType"); v != "" {
		et := domain.MetricEventType(v)
		if !et.Valid() {
			httputil.BadRequest(w, "invalid eventType")
			return req, false
		}
		req.Filter.EventType = et
	}
	switch v := q.Get("visitorType"); v {
	case "":
	case string(metrics.VisitorUnique):
		req.Filter.VisitorType = metrics.VisitorUnique
	case string(metrics.VisitorRepeat):
		req.Filter.VisitorType = metrics.VisitorRepeat
	default:
		httputil.BadRequest(w, "invalid visitorType")
		return req, false
	}
	req.Filter.VisitorID = q.Get("visitorId")
	req.Filter.Search = q.Get("search")
	req.Filter.ElementSelector = q.Get("elementSelector")

	return req, true
}

// parseDate accepts RFC3339 timestamps or bare dates. Bare end dates
// resolve to the end of that day so a single-day range covers the whole
// day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
