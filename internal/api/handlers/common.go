// Package handlers adapts HTTP requests to the calendar credential engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
)

// Engine is the credential lifecycle the calendar endpoints drive.
type Engine interface {
	BuildAuthorizationURL(ctx context.Context, kind calendar.ProviderKind, userID, state string) (string, error)
	ExchangeCode(ctx context.Context, kind calendar.ProviderKind, userID, code string) (*calendar.CredentialRecord, error)
	RefreshSilently(ctx context.Context, kind calendar.ProviderKind, userID string) (*calendar.CredentialRecord, error)
}

type UserFlagger interface {
	MarkCalendarSynced(ctx context.Context, userID string) error
}

// Redirects locates the front-end pages the redirect endpoints land on.
type Redirects struct {
	AppURL      string
	StatusPath  string
	SuccessPath string
}

func (r Redirects) status(errCode, description string) string {
	q := url.Values{}
	q.Set("error", errCode)
	q.Set("error_description", description)
	return strings.TrimRight(r.AppURL, "/") + r.StatusPath + "?" + q.Encode()
}

func (r Redirects) success() string {
	return strings.TrimRight(r.AppURL, "/") + r.SuccessPath
}

func (r Redirects) secure() bool {
	return strings.HasPrefix(strings.ToLower(r.AppURL), "https://")
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func providerParam(r *http.Request) string {
	return chi.URLParam(r, "provider")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.For("http").Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
