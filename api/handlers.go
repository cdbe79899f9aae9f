package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Muhametii00/calendar/calendar"
	"github.com/Muhametii00/calendar/lifecycle"
)

// SessionState handles GET /session: the reactive session record the
// shell renders its routing decision from.
func (a *API) SessionState(w http.ResponseWriter, r *http.Request) {
	snap := a.controller.Snapshot()
	saved := ""
	if !snap.Authorized {
		saved = a.controller.SavedEmail()
	}
	writeJSON(w, http.StatusOK, sessionResponse(snap, saved))
}

// ReportLifecycle handles POST /lifecycle: the device shell reports
// foreground/background transitions here.
func (a *API) ReportLifecycle(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LifecycleRequest](w, r)
	if !ok {
		return
	}
	phase, ok := lifecycle.ParsePhase(req.Phase)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown lifecycle phase")
		return
	}
	a.feed.Report(phase)
	a.audit.log(AuditLifecycleReported, r, slog.String("phase", phase.String()))
	w.WriteHeader(http.StatusAccepted)
}

// SelectDate handles PUT /session/date.
func (a *API) SelectDate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SelectDateRequest](w, r)
	if !ok {
		return
	}
	day, err := calendar.ParseDateKey(req.Date)
	if err != nil {
		mapError(w, err)
		return
	}
	t, _ := time.Parse("2006-01-02", day.String())
	a.controller.SetSelectedDate(t)
	writeJSON(w, http.StatusOK, sessionResponse(a.controller.Snapshot(), ""))
}

// GetProfile handles GET /profile.
func (a *API) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	rec, err := a.profiles.Get(r.Context(), id.UID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{
		Name:      rec.Name,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	})
}

func dateParam(w http.ResponseWriter, r *http.Request) (calendar.DateKey, bool) {
	day, err := calendar.ParseDateKey(chi.URLParam(r, "date"))
	if err != nil {
		mapError(w, err)
		return "", false
	}
	return day, true
}

// ListEvents handles GET /calendar/{date}/events.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	id := identityFromContext(r.Context())
	events, err := a.events.Events(r.Context(), id.UID, day)
	if err != nil {
		mapError(w, err)
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}
	writeJSON(w, http.StatusOK, ListEventsResponse{Date: day.String(), Events: events})
}

// AddEvent handles POST /calendar/{date}/events.
func (a *API) AddEvent(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[EventRequest](w, r)
	if !ok {
		return
	}
	id := identityFromContext(r.Context())
	ev, err := a.events.Add(r.Context(), id.UID, day, calendar.Event{
		Title:       req.Title,
		Time:        req.Time,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditEventCreated, r, id.UID, slog.String("event_id", ev.ID))
	writeJSON(w, http.StatusCreated, ev)
}

// UpdateEvent handles PUT /calendar/{date}/events/{eventID}.
func (a *API) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[EventRequest](w, r)
	if !ok {
		return
	}
	id := identityFromContext(r.Context())
	ev, err := a.events.Update(r.Context(), id.UID, day, calendar.Event{
		ID:          chi.URLParam(r, "eventID"),
		Title:       req.Title,
		Time:        req.Time,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditEventUpdated, r, id.UID, slog.String("event_id", ev.ID))
	writeJSON(w, http.StatusOK, ev)
}

// DeleteEvent handles DELETE /calendar/{date}/events/{eventID}.
func (a *API) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	id := identityFromContext(r.Context())
	eventID := chi.URLParam(r, "eventID")
	if err := a.events.Delete(r.Context(), id.UID, day, eventID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditEventDeleted, r, id.UID, slog.String("event_id", eventID))
	w.WriteHeader(http.StatusNoContent)
}
