package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"freet/pkg/services"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, tag string, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{tag: msg}})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// kind names the resource the request was about ("circle", "follow", ...)
// and selects the tag for existence errors.
func writeServiceError(w http.ResponseWriter, kind string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalidId", err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "notLoggedIn", "you must be logged in to perform this action")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, kind+"NotFound", "no "+kind+" was found for this request")
	case errors.Is(err, services.ErrAlreadyExists):
		writeError(w, http.StatusConflict, kind+"AlreadyExists", "a "+kind+" already exists for this id")
	case errors.Is(err, services.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "alreadyMember", "this reference is already in the "+kind)
	case errors.Is(err, services.ErrNotMember):
		writeError(w, http.StatusConflict, "notMember", "this reference is not in the "+kind)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
