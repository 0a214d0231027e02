package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pysugar/calsync/internal/api/middleware"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/calendar/graph"
	"github.com/pysugar/calsync/internal/logging"
)

type EventCreator interface {
	CreateEvent(ctx context.Context, userID string, ev graph.NewEvent) (string, error)
}

// EventsHandler creates a calendar event for the signed-in user.
func EventsHandler(events EventCreator) http.HandlerFunc {
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
		if kind != calendar.ProviderOutlook {
			writeError(w, http.StatusBadRequest, calendar.ErrUnsupportedProvider.Error()+": "+string(kind))
			return
		}

		var ev graph.NewEvent
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if err := ev.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		id, err := events.CreateEvent(r.Context(), userID, ev)
		if err != nil {
			logging.Ctx(r.Context(), "calendar").Warn().Err(err).Str("user_id", userID).Msg("event creation failed")
			var opErr *calendar.OpError
			if errors.As(err, &opErr) {
				writeError(w, calendar.HTTPStatus(err), calendar.Message(err))
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}
