package api

import (
	"context"
	"net/http"

	"github.com/Muhametii00/calendar/credential"
	"github.com/Muhametii00/calendar/session"
)

type contextKey int

const identityKey contextKey = iota

// Gate refuses protected requests whenever the session record says the
// viewer may not see protected content: 503 while the session is still
// bootstrapping, 401 when nobody is signed in, and 423 with a cover
// body while a biometric challenge is in flight.
func (a *API) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := a.controller.Snapshot()

		switch {
		case snap.Bootstrapping:
			a.audit.logFailure(AuditGateRefused, r, "bootstrapping")
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "session still starting")
		case !snap.Authorized:
			a.audit.logFailure(AuditGateRefused, r, "unauthenticated")
			writeError(w, http.StatusUnauthorized, "authentication required")
		case snap.ChallengeVisible:
			a.audit.logFailure(AuditGateRefused, r, "challenge in flight")
			writeJSON(w, http.StatusLocked, CoverResponse{Cover: true})
		default:
			ctx := context.WithValue(r.Context(), identityKey, snap.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// identityFromContext returns the identity the Gate attached, nil on
// ungated routes.
func identityFromContext(ctx context.Context) *credential.Identity {
	id, _ := ctx.Value(identityKey).(*credential.Identity)
	return id
}

func sessionResponse(snap session.Snapshot, savedEmail string) SessionResponse {
	resp := SessionResponse{
		Authorized:       snap.Authorized,
		Bootstrapping:    snap.Bootstrapping,
		ChallengeVisible: snap.ChallengeVisible,
		SelectedDate:     snap.SelectedDate.Format("2006-01-02"),
		SavedEmail:       savedEmail,
	}
	if snap.Identity != nil {
		resp.UID = snap.Identity.UID
		resp.Email = snap.Identity.Email
		resp.DisplayName = snap.Identity.DisplayName
	}
	return resp
}
