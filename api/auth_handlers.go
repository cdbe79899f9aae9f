package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 1 << 20

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &v, true
}

// Login handles POST /auth/login. The call blocks through the sign-in
// and, when a sensor is present, the mandatory biometric confirmation.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r)
	if !ok {
		return
	}
	if err := a.controller.Login(r.Context(), req.Email, req.Password); err != nil {
		a.audit.logFailure(AuditLoginFailure, r, err.Error())
		mapError(w, err)
		return
	}
	snap := a.controller.Snapshot()
	accountID := ""
	if snap.Identity != nil {
		accountID = snap.Identity.UID
	}
	a.audit.logEvent(AuditLoginSuccess, r, accountID)
	writeJSON(w, http.StatusOK, sessionResponse(snap, a.controller.SavedEmail()))
}

// SignUp handles POST /auth/signup.
func (a *API) SignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SignUpRequest](w, r)
	if !ok {
		return
	}
	if err := a.controller.SignUp(r.Context(), req.Email, req.Password, req.Name); err != nil {
		a.audit.logFailure(AuditSignUpFailure, r, err.Error())
		mapError(w, err)
		return
	}
	snap := a.controller.Snapshot()
	accountID := ""
	if snap.Identity != nil {
		accountID = snap.Identity.UID
	}
	a.audit.logEvent(AuditSignUp, r, accountID)
	writeJSON(w, http.StatusCreated, sessionResponse(snap, a.controller.SavedEmail()))
}

// Logout handles POST /auth/logout. Sign-out is best-effort: local
// session state is cleared even when the provider call fails, so the
// response is a success either way.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	if err := a.controller.Logout(r.Context()); err != nil {
		a.audit.logEvent(AuditLogout, r, id.UID, slog.String("error", err.Error()))
	} else {
		a.audit.logEvent(AuditLogout, r, id.UID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckBiometrics handles POST /auth/biometrics/check: a standalone
// yes/no challenge with no session side effects.
func (a *API) CheckBiometrics(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	verified, err := a.controller.CheckBiometrics(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditBiometricChecked, r, id.UID, slog.Bool("verified", verified))
	writeJSON(w, http.StatusOK, CheckBiometricsResponse{Verified: verified})
}
