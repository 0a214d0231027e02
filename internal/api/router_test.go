package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pysugar/calsync/internal/api/handlers"
	"github.com/pysugar/calsync/internal/api/middleware"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEngine struct {
	userID string
	kind   calendar.ProviderKind
}

func (e *recordingEngine) BuildAuthorizationURL(_ context.Context, _ calendar.ProviderKind, _, _ string) (string, error) {
	return "https://login.example.com/authorize", nil
}

func (e *recordingEngine) ExchangeCode(_ context.Context, kind calendar.ProviderKind, userID, _ string) (*calendar.CredentialRecord, error) {
	return &calendar.CredentialRecord{UserID: userID, Provider: kind}, nil
}

func (e *recordingEngine) RefreshSilently(_ context.Context, kind calendar.ProviderKind, userID string) (*calendar.CredentialRecord, error) {
	e.userID, e.kind = userID, kind
	return &calendar.CredentialRecord{UserID: userID, Provider: kind}, nil
}

func newTestRouter(engine handlers.Engine, sessions *middleware.Verifier) http.Handler {
	return NewRouter(Deps{
		Engine:   engine,
		Sessions: sessions,
		Redirects: handlers.Redirects{
			AppURL:      "http://localhost:3000",
			StatusPath:  "/sync-calendar",
			SuccessPath: "/calendar-connected",
		},
	})
}

func TestRouter_SessionReachesCalendarRoutes(t *testing.T) {
	sessions := middleware.NewVerifier("router-secret", 0)
	engine := &recordingEngine{}
	router := newTestRouter(engine, sessions)

	token, err := sessions.Issue("user-42")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/microsoft/silent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", engine.userID)
	assert.Equal(t, calendar.ProviderOutlook, engine.kind)
	assert.NotEmpty(t, rec.Header().Get(logging.RequestIDHeader))
}

func TestRouter_CookieSession(t *testing.T) {
	sessions := middleware.NewVerifier("router-secret", 0)
	engine := &recordingEngine{}
	router := newTestRouter(engine, sessions)

	token, err := sessions.Issue("user-7")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar/outlook/initiate", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://login.example.com/authorize", rec.Header().Get("Location"))
}

func TestRouter_NoSession(t *testing.T) {
	router := newTestRouter(&recordingEngine{}, middleware.NewVerifier("router-secret", 0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar/outlook/silent", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Version(t *testing.T) {
	router := newTestRouter(&recordingEngine{}, middleware.NewVerifier("router-secret", 0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}
