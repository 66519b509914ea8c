package api

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/gorilla/mux"

	"freet/pkg/model"
)

func (ro *router) listFreetsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	var freets []model.Freet
	var err error
	if author := r.URL.Query().Get("author"); author != "" {
		var authorID int64
		authorID, err = ro.users.GetUserId(ctx, reqID, author)
		if err != nil {
			writeServiceError(w, "user", err)
			return
		}
		freets, err = ro.freets.ListFreetsByAuthor(ctx, reqID, authorID)
	} else {
		freets, err = ro.freets.ListFreets(ctx, reqID)
	}
	if err != nil {
		writeServiceError(w, "freet", err)
		return
	}
	out := make([]FreetResponse, 0, len(freets))
	for _, freet := range freets {
		out = append(out, constructFreetResponse(freet))
	}
	writeJSON(w, http.StatusOK, out)
}

func (ro *router) storeFreetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	authorID, err := ro.sessionUserID(r)
	if err != nil {
		writeServiceError(w, "user", err)
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	if body.Content == "" {
		writeError(w, http.StatusBadRequest, "invalidBody", "freet content must not be empty")
		return
	}
	freet, err := ro.freets.StoreFreet(ctx, reqID, authorID, body.Content)
	if err != nil {
		writeServiceError(w, "freet", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Your freet was created successfully.",
		"freet":   constructFreetResponse(freet),
	})
}

func (ro *router) editFreetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	freetID, err := parseID(mux.Vars(r)["freetId"])
	if err != nil {
		writeServiceError(w, "freet", err)
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	freet, err := ro.freets.EditFreet(ctx, reqID, freetID, body.Content)
	if err != nil {
		writeServiceError(w, "freet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Your freet was updated successfully.",
		"freet":   constructFreetResponse(freet),
	})
}

func (ro *router) deleteFreetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	freetID, err := parseID(mux.Vars(r)["freetId"])
	if err != nil {
		writeServiceError(w, "freet", err)
		return
	}
	deleted, err := ro.freets.DeleteFreet(ctx, reqID, freetID)
	if err != nil {
		writeServiceError(w, "freet", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "freetNotFound", "no freet was found for this request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Your freet was deleted successfully.",
	})
}
