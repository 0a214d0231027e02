package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/pysugar/calsync/internal/api/middleware"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
)

const (
	stateCookieName   = "calsync_oauth_state"
	stateCookieMaxAge = 600

	connectionFailed = "calendar-connection-failed"
)

// InitiateHandler redirects the signed-in user to the provider consent page.
func InitiateHandler(engine Engine, redirects Redirects) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.Ctx(r.Context(), "calendar")

		userID := middleware.UserID(r.Context())
		if userID == "" {
			redirect(w, r, redirects.status("user_not_found", "could_not_find_user"))
			return
		}

		segment := providerParam(r)
		kind, err := calendar.ParseProvider(segment)
		if err != nil {
			redirect(w, r, redirects.status(connectionFailed, "unsupported-calendar-provider-"+segment))
			return
		}

		state := uuid.New().String()
		authURL, err := engine.BuildAuthorizationURL(r.Context(), kind, userID, state)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to build authorization url")
			redirect(w, r, redirects.status(connectionFailed, callbackSlug(err, kind)))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     "/api/calendar",
			MaxAge:   stateCookieMaxAge,
			HttpOnly: true,
			Secure:   redirects.secure(),
			SameSite: http.SameSiteLaxMode,
		})
		redirect(w, r, authURL)
	}
}

// CallbackHandler completes the authorization-code flow. It always answers
// with a redirect: to the success page, or to the status page with an error
// slug.
func CallbackHandler(engine Engine, users UserFlagger, redirects Redirects) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.Ctx(r.Context(), "calendar")
		query := r.URL.Query()

		if providerErr := query.Get("error"); providerErr != "" {
			log.Warn().Str("error", providerErr).Str("description", query.Get("error_description")).Msg("provider returned an OAuth error")
			redirect(w, r, redirects.status(providerErr, query.Get("error_description")))
			return
		}

		code := query.Get("code")
		if code == "" {
			redirect(w, r, redirects.status(connectionFailed, "authorization-code-not-found"))
			return
		}

		segment := providerParam(r)
		kind, err := calendar.ParseProvider(segment)
		if err != nil {
			redirect(w, r, redirects.status(connectionFailed, "unsupported-calendar-provider-"+segment))
			return
		}

		if c, err := r.Cookie(stateCookieName); err == nil {
			clearStateCookie(w, redirects)
			if c.Value != query.Get("state") {
				log.Warn().Msg("oauth state mismatch")
				redirect(w, r, redirects.status(connectionFailed, "invalid-oauth-state"))
				return
			}
		}

		userID := middleware.UserID(r.Context())
		if userID == "" {
			redirect(w, r, redirects.status(connectionFailed, "user-not-found"))
			return
		}

		rec, err := engine.ExchangeCode(r.Context(), kind, userID, code)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("calendar connection failed")
			redirect(w, r, redirects.status(connectionFailed, callbackSlug(err, kind)))
			return
		}
		if rec == nil {
			redirect(w, r, redirects.status(connectionFailed, "token-data-not-found"))
			return
		}

		if err := users.MarkCalendarSynced(r.Context(), userID); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("failed to flag user as synced")
			redirect(w, r, redirects.status(connectionFailed, err.Error()))
			return
		}

		redirect(w, r, redirects.success())
	}
}

// SilentHandler refreshes the signed-in user's credential without
// interaction and reports the outcome as JSON.
func SilentHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			writeError(w, http.StatusNotFound, calendar.ErrUserNotFound.Error())
			return
		}

		kind, err := calendar.ParseProvider(providerParam(r))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if _, err := engine.RefreshSilently(r.Context(), kind, userID); err != nil {
			logging.Ctx(r.Context(), "calendar").Warn().Err(err).Str("user_id", userID).Msg("silent refresh failed")
			writeError(w, calendar.HTTPStatus(err), calendar.Message(err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// callbackSlug maps an engine error onto the error_description slug the
// front end understands. Storage failures carry their own message.
func callbackSlug(err error, kind calendar.ProviderKind) string {
	switch {
	case errors.Is(err, calendar.ErrUnsupportedProvider):
		return "unsupported-calendar-provider-" + string(kind)
	case errors.Is(err, calendar.ErrUserNotFound):
		return "user-not-found"
	case errors.Is(err, calendar.ErrMissingCode):
		return "authorization-code-not-found"
	case errors.Is(err, calendar.ErrPersistenceFailed):
		return calendar.Message(err)
	default:
		return "failed-to-connect-to-calendar-provider"
	}
}

func clearStateCookie(w http.ResponseWriter, redirects Redirects) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/api/calendar",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   redirects.secure(),
		SameSite: http.SameSiteLaxMode,
	})
}
