package api

import "github.com/Muhametii00/calendar/calendar"

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the JSON body for POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SessionResponse is returned from GET /session and after login/signup.
type SessionResponse struct {
	Authorized       bool    `json:"authorized"`
	Bootstrapping    bool    `json:"bootstrapping"`
	ChallengeVisible bool    `json:"challenge_visible"`
	SelectedDate     string  `json:"selected_date"`
	SavedEmail       string  `json:"saved_email,omitempty"`
	UID              string  `json:"uid,omitempty"`
	Email            string  `json:"email,omitempty"`
	DisplayName      string  `json:"display_name,omitempty"`
}

// LifecycleRequest is the JSON body for POST /lifecycle.
type LifecycleRequest struct {
	Phase string `json:"phase"`
}

// SelectDateRequest is the JSON body for PUT /session/date.
type SelectDateRequest struct {
	Date string `json:"date"`
}

// CheckBiometricsResponse is returned from POST /auth/biometrics/check.
type CheckBiometricsResponse struct {
	Verified bool `json:"verified"`
}

// EventRequest is the JSON body for creating or updating an event.
type EventRequest struct {
	Title       string `json:"title"`
	Time        string `json:"time"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// ListEventsResponse is returned from GET /calendar/{date}/events.
type ListEventsResponse struct {
	Date   string           `json:"date"`
	Events []calendar.Event `json:"events"`
}

// ProfileResponse is returned from GET /profile.
type ProfileResponse struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// CoverResponse is returned on protected routes while a biometric
// challenge is in flight.
type CoverResponse struct {
	Cover bool `json:"cover"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
	Cause string `json:"cause,omitempty"`
}
