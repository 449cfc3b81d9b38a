package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/instrument"
	"github.com/ignite/popup-engine/internal/pkg/httputil"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// trackEventPayload is the ingestion body sent by the embedded script.
//
// IsUniqueVisitor/IsRepeatVisitor are accepted for wire compatibility with
// older embed scripts but never trusted: the visitor ledger is the only
// authority on visitor status, since this endpoint is public and the
// caller untrusted.
type trackEventPayload struct {
	EventType       string          `json:"eventType"`
	VisitorID       string          `json:"visitorId"`
	ElementSelector string          `json:"elementSelector,omitempty"`
	ElementText     string          `json:"elementText,omitempty"`
	URL             string          `json:"url"`
	UserAgent       string          `json:"userAgent,omitempty"`
	IPAddress       string          `json:"ipAddress,omitempty"`
	IsUniqueVisitor *bool           `json:"isUniqueVisitor,omitempty"`
	IsRepeatVisitor *bool           `json:"isRepeatVisitor,omitempty"`
	Metadata        domain.Metadata `json:"metadata,omitempty"`
}

// HandleTrackEvent handles POST /track/activities/{activityID}/events.
// Public and unauthenticated so third-party-embedded scripts can report
// without a session.
func (h *Handlers) HandleTrackEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	activityID := chi.URLParam(r, "activityID")

	var payload trackEventPayload
	if !httputil.Decode(w, r, &payload) {
		instrument.EventsRejectedTotal.WithLabelValues("bad_request").Inc()
		return
	}

	ua := payload.UserAgent
	if ua == "" {
		ua = r.UserAgent()
	}
	if isBot(ua) {
		instrument.EventsRejectedTotal.WithLabelValues("bot").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ev, err := h.recorder.Record(r.Context(), metrics.RecordRequest{
		ActivityID:      activityID,
		EventType:       domain.MetricEventType(payload.EventType),
		VisitorID:       payload.VisitorID,
		ElementSelector: payload.ElementSelector,
		ElementText:     payload.ElementText,
		PageURL:         payload.URL,
		UserAgent:       ua,
		SourceIP:        sourceIP(r, payload.IPAddress),
		Metadata:        payload.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, metrics.ErrActivityNotFound):
			instrument.EventsRejectedTotal.WithLabelValues("not_found").Inc()
			httputil.NotFound(w, "activity not found")
		case errors.Is(err, metrics.ErrInvalidEvent):
			instrument.EventsRejectedTotal.WithLabelValues("bad_request").Inc()
			httputil.BadRequest(w, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	instrument.EventsIngestedTotal.WithLabelValues(string(ev.EventType)).Inc()
	instrument.IngestDuration.Observe(time.Since(start).Seconds())
	httputil.OK(w, ev)
}

// HandleHealth handles GET /track/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// sourceIP resolves the reporting client's IP: explicit payload value,
// then forwarding headers, then "unknown". The engine never trusts
// RemoteAddr here because ingestion always sits behind a proxy in
// production.
func sourceIP(r *http.Request, fromPayload string) string {
	if fromPayload != "" {
		return fromPayload
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return "unknown"
}

var botKeywords = []string{"bot", "crawler", "spider", "headless", "phantom", "wget", "curl", "python-requests"}

func isBot(ua string) bool {
	lower := strings.ToLower(ua)
	for _, kw := range botKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
