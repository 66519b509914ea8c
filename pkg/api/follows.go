package api

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/gorilla/mux"

	"freet/pkg/model"
)

// The follows endpoints keep the query and body parameter names this
// surface has always used: lookups filter with ?user=, and PUT /api/follows
// distinguishes add from remove by the presence of the addFollower field.

func (ro *router) listFollowsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if raw := r.URL.Query().Get("user"); raw != "" {
		userID, err := parseID(raw)
		if err != nil {
			writeServiceError(w, "follow", err)
			return
		}
		follow, err := ro.follows.GetFollow(ctx, reqID, userID)
		if err != nil {
			writeServiceError(w, "follow", err)
			return
		}
		writeJSON(w, http.StatusOK, constructFollowResponse(follow))
		return
	}
	follows, err := ro.follows.ListFollows(ctx, reqID)
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	out := make([]FollowResponse, 0, len(follows))
	for _, follow := range follows {
		out = append(out, constructFollowResponse(follow))
	}
	writeJSON(w, http.StatusOK, out)
}

func (ro *router) createFollowHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	var body struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	userID, err := parseID(body.UserID)
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	if !ro.runValidators(ctx, w, ro.requireUserExists(reqID, userID)) {
		return
	}
	follow, err := ro.follows.CreateFollow(ctx, reqID, userID)
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "The follow aggregate was created successfully.",
		"follow":  constructFollowResponse(follow),
	})
}

func (ro *router) updateFollowHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	var body struct {
		UserID      string `json:"userId"`
		FollowID    string `json:"followId"`
		AddFollower *bool  `json:"addFollower"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	userID, err := parseID(body.UserID)
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	followID, err := parseID(body.FollowID)
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	add := body.AddFollower != nil
	if !ro.runValidators(ctx, w,
		ro.requireFollowExists(reqID, userID),
		ro.requireUserExists(reqID, followID),
		ro.requireFollowing(reqID, userID, followID, !add),
	) {
		return
	}
	var follow model.Follow
	if add {
		follow, err = ro.follows.AddFollowing(ctx, reqID, userID, followID)
	} else {
		follow, err = ro.follows.RemoveFollowing(ctx, reqID, userID, followID)
	}
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The follow aggregate was updated successfully.",
		"follow":  constructFollowResponse(follow),
	})
}

func (ro *router) deleteFollowHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	userID, err := parseID(mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	deleted, err := ro.follows.DeleteFollow(ctx, reqID, userID)
	if err != nil {
		writeServiceError(w, "follow", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "followNotFound", "no follow was found for this request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The follow aggregate was deleted successfully.",
	})
}
