package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Muhametii00/calendar/calendar"
	"github.com/Muhametii00/calendar/profile"
	"github.com/Muhametii00/calendar/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates domain errors into HTTP responses. FlowErrors
// carry their user-facing sentence and cause verbatim.
func mapError(w http.ResponseWriter, err error) {
	var flowErr *session.FlowError
	if errors.As(err, &flowErr) {
		writeJSON(w, flowStatus(flowErr.Cause), ErrorResponse{
			Error: flowErr.Message,
			Cause: string(flowErr.Cause),
		})
		return
	}

	switch {
	case errors.Is(err, session.ErrChallengeInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, calendar.ErrEventNotFound),
		errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrBadDateKey),
		errors.Is(err, calendar.ErrTitleRequired),
		errors.Is(err, calendar.ErrTitleLength),
		errors.Is(err, calendar.ErrTimeRequired),
		errors.Is(err, calendar.ErrTimeFormat),
		errors.Is(err, calendar.ErrDescTooLong),
		errors.Is(err, calendar.ErrBadColor):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func flowStatus(cause session.Cause) int {
	switch cause {
	case session.CauseInvalidEmail, session.CauseWeakPassword:
		return http.StatusBadRequest
	case session.CauseWrongPassword, session.CauseUserNotFound,
		session.CauseInvalidCredential:
		return http.StatusUnauthorized
	case session.CauseEmailInUse:
		return http.StatusConflict
	case session.CauseTooManyRequests:
		return http.StatusTooManyRequests
	case session.CauseOffline:
		return http.StatusBadGateway
	case session.CauseBiometricDeclined, session.CauseBiometricCancelled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
