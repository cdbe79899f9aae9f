package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muhametii00/calendar/biometric"
	"github.com/Muhametii00/calendar/calendar"
	"github.com/Muhametii00/calendar/credential/localidp"
	"github.com/Muhametii00/calendar/flags/memflags"
	"github.com/Muhametii00/calendar/internal/util"
	"github.com/Muhametii00/calendar/lifecycle"
	"github.com/Muhametii00/calendar/profile"
	"github.com/Muhametii00/calendar/session"
	"github.com/Muhametii00/calendar/storage/memory"
)

// stubSensor is a sensor whose availability can be toggled and whose
// challenge can be held open to keep a cover in flight.
type stubSensor struct {
	mu        sync.Mutex
	available bool
	hold      chan struct{}
}

func (s *stubSensor) Available(context.Context) (biometric.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return biometric.Availability{Available: s.available, Kind: biometric.KindFingerprint}, nil
}

func (s *stubSensor) Challenge(context.Context, string) (biometric.Result, error) {
	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
	return biometric.Result{Outcome: biometric.OutcomeSuccess}, nil
}

func (s *stubSensor) setAvailable(v bool) {
	s.mu.Lock()
	s.available = v
	s.mu.Unlock()
}

// seedAdapter seeds today's starter events at sign-up.
type seedAdapter struct {
	events *calendar.Store
}

func (s seedAdapter) Seed(ctx context.Context, accountID string) error {
	return s.events.SeedSamples(ctx, accountID, calendar.NewDateKey(time.Now()))
}

type testAPI struct {
	router   chi.Router
	ctrl     *session.Controller
	provider *localidp.Provider
	sensor   *stubSensor
	feed     *lifecycle.Feed
}

func newTestAPI(t *testing.T, start bool) *testAPI {
	t.Helper()

	repo := memory.NewRepository()
	masterKey, err := util.RandomBytes(util.AESKeySize)
	require.NoError(t, err)

	provider, err := localidp.New(repo, masterKey)
	require.NoError(t, err)

	sensor := &stubSensor{}
	feed := lifecycle.NewFeed()
	fl := memflags.NewStore()

	events := calendar.NewStore(repo, masterKey)
	profiles, err := profile.NewStore(repo, masterKey)
	require.NoError(t, err)

	ctrl := session.NewController(provider, sensor, fl, feed,
		session.WithTimings(time.Millisecond, time.Millisecond),
		session.WithProfileWriter(profiles),
		session.WithSeeder(seedAdapter{events: events}),
	)
	ctrl.Start(context.Background())
	t.Cleanup(ctrl.Close)

	if start {
		require.NoError(t, provider.Start(context.Background()))
	}

	a := New(ctrl, events, profiles, feed)
	root := chi.NewRouter()
	root.Use(SecurityHeaders)
	root.Mount("/api/v1", a.Router())

	return &testAPI{router: root, ctrl: ctrl, provider: provider, sensor: sensor, feed: feed}
}

func (ta *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	return rec
}

func (ta *testAPI) waitAuthorized(t *testing.T, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := ta.ctrl.Snapshot()
		return s.Authorized == want && !s.Bootstrapping
	}, 2*time.Second, time.Millisecond)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGateWhileBootstrapping(t *testing.T) {
	ta := newTestAPI(t, false) // provider not started: no identity replay yet

	rec := ta.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// The ungated session record still answers.
	rec = ta.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[SessionResponse](t, rec).Bootstrapping)
}

func TestGateWhenUnauthenticated(t *testing.T) {
	ta := newTestAPI(t, true)
	ta.waitAuthorized(t, false)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/profile"},
		{http.MethodGet, "/calendar/2026-08-31/events"},
		{http.MethodPut, "/session/date"},
	} {
		rec := ta.do(t, route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestSignUpLoginAndProfile(t *testing.T) {
	ta := newTestAPI(t, true)
	ta.waitAuthorized(t, false)

	rec := ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{
		Email: "ana@example.com", Password: "hunter22", Name: "Ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ta.waitAuthorized(t, true)

	rec = ta.do(t, http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prof := decodeBody[ProfileResponse](t, rec)
	assert.Equal(t, "Ana", prof.Name)
	assert.Equal(t, "ana@example.com", prof.Email)

	// Starter events were seeded for today.
	today := calendar.NewDateKey(time.Now()).String()
	rec = ta.do(t, http.MethodGet, "/calendar/"+today+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ListEventsResponse](t, rec).Events, 3)

	rec = ta.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	ta.waitAuthorized(t, false)

	// The saved email survives for prefill.
	rec = ta.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", decodeBody[SessionResponse](t, rec).SavedEmail)

	rec = ta.do(t, http.MethodPost, "/auth/login", LoginRequest{
		Email: "ana@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ta.waitAuthorized(t, true)
}

func TestLoginFailureMapping(t *testing.T) {
	ta := newTestAPI(t, true)
	ta.waitAuthorized(t, false)

	rec := ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{
		Email: "ana@example.com", Password: "hunter22", Name: "Ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	ta.waitAuthorized(t, true)
	require.Equal(t, http.StatusNoContent, ta.do(t, http.MethodPost, "/auth/logout", nil).Code)
	ta.waitAuthorized(t, false)

	rec = ta.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Incorrect password.", body.Error)
	assert.Equal(t, "wrong_password", body.Cause)

	rec = ta.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "ghost@example.com", Password: "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No account found with this email.", decodeBody[ErrorResponse](t, rec).Error)

	rec = ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{Email: "ana@example.com", Password: "hunter22", Name: "Ana"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "An account with this email already exists.", decodeBody[ErrorResponse](t, rec).Error)

	rec = ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{Email: "bo@example.com", Password: "short", Name: "Bo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password should be at least 6 characters.", decodeBody[ErrorResponse](t, rec).Error)
}

func TestEventCRUD(t *testing.T) {
	ta := newTestAPI(t, true)
	ta.waitAuthorized(t, false)
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{
		Email: "ana@example.com", Password: "hunter22", Name: "Ana",
	}).Code)
	ta.waitAuthorized(t, true)

	const day = "/calendar/2026-08-31/events"

	rec := ta.do(t, http.MethodPost, day, EventRequest{Title: "Standup", Time: "9:30 AM"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[calendar.Event](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, calendar.DefaultColor, created.Color)

	rec = ta.do(t, http.MethodPost, day, EventRequest{Title: "x", Time: "9:30 AM"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(t, http.MethodGet, day, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ListEventsResponse](t, rec).Events, 1)

	rec = ta.do(t, http.MethodPut, fmt.Sprintf("%s/%s", day, created.ID),
		EventRequest{Title: "Standup (moved)", Time: "10:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Standup (moved)", decodeBody[calendar.Event](t, rec).Title)

	rec = ta.do(t, http.MethodPut, day+"/nope", EventRequest{Title: "Ghost", Time: "10:00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(t, http.MethodDelete, fmt.Sprintf("%s/%s", day, created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ta.do(t, http.MethodGet, "/calendar/31-08-2026/events", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectDate(t *testing.T) {
	ta := newTestAPI(t, true)
	ta.waitAuthorized(t, false)
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{
		Email: "ana@example.com", Password: "hunter22", Name: "Ana",
	}).Code)
	ta.waitAuthorized(t, true)

	rec := ta.do(t, http.MethodPut, "/session/date", SelectDateRequest{Date: "2026-12-24"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-12-24", decodeBody[SessionResponse](t, rec).SelectedDate)

	rec = ta.do(t, http.MethodPut, "/session/date", SelectDateRequest{Date: "christmas"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLifecycleEndpoint(t *testing.T) {
	ta := newTestAPI(t, true)

	rec := ta.do(t, http.MethodPost, "/lifecycle", LifecycleRequest{Phase: "background"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ta.do(t, http.MethodPost, "/lifecycle", LifecycleRequest{Phase: "hibernating"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCoverWhileChallengeInFlight(t *testing.T) {
	ta := newTestAPI(t, true)
	ta.waitAuthorized(t, false)

	// Sign up without a sensor so no challenge gates the flow.
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/auth/signup", SignUpRequest{
		Email: "ana@example.com", Password: "hunter22", Name: "Ana",
	}).Code)
	ta.waitAuthorized(t, true)

	// Now hold a biometric check open and watch the gate lock.
	ta.sensor.setAvailable(true)
	ta.sensor.hold = make(chan struct{})

	checkDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		checkDone <- ta.do(t, http.MethodPost, "/auth/biometrics/check", nil)
	}()

	require.Eventually(t, func() bool { return ta.ctrl.Snapshot().ChallengeVisible },
		2*time.Second, time.Millisecond)

	rec := ta.do(t, http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.True(t, decodeBody[CoverResponse](t, rec).Cover)

	close(ta.sensor.hold)
	checkRec := <-checkDone
	require.Equal(t, http.StatusOK, checkRec.Code, checkRec.Body.String())
	assert.True(t, decodeBody[CheckBiometricsResponse](t, checkRec).Verified)

	rec = ta.do(t, http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	ta := newTestAPI(t, true)
	rec := ta.do(t, http.MethodGet, "/session", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestOpenAPIServed(t *testing.T) {
	ta := newTestAPI(t, true)
	rec := ta.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Calendar Session API")
}
