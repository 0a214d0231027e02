package handlers

import (
	"net/http"

	"github.com/pysugar/calsync/internal/version"
)

func VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.Info())
	}
}
