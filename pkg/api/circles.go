package api

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/gorilla/mux"

	"freet/pkg/model"
)

// The circles endpoints filter with ?owner= and ?member=, both usernames.
// Member and freet mutations are gated: adding a reference that is already
// in the set, or removing one that is not, answers 409.

func (ro *router) listCirclesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	query := r.URL.Query()
	var circles []model.Circle
	var err error
	switch {
	case query.Get("owner") != "":
		var ownerID int64
		ownerID, err = ro.users.GetUserId(ctx, reqID, query.Get("owner"))
		if err != nil {
			writeServiceError(w, "user", err)
			return
		}
		circles, err = ro.circles.ListCirclesByOwner(ctx, reqID, ownerID)
	case query.Get("member") != "":
		var memberID int64
		memberID, err = ro.users.GetUserId(ctx, reqID, query.Get("member"))
		if err != nil {
			writeServiceError(w, "user", err)
			return
		}
		circles, err = ro.circles.ListCirclesByMember(ctx, reqID, memberID)
	default:
		circles, err = ro.circles.ListCircles(ctx, reqID)
	}
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	out := make([]CircleResponse, 0, len(circles))
	for _, circle := range circles {
		out = append(out, constructCircleResponse(circle))
	}
	writeJSON(w, http.StatusOK, out)
}

func (ro *router) createCircleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	ownerID, err := ro.sessionUserID(r)
	if err != nil {
		writeServiceError(w, "user", err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "invalidBody", "circle name must not be empty")
		return
	}
	circle, err := ro.circles.CreateCircle(ctx, reqID, body.Name, ownerID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "The circle was created successfully.",
		"circle":  constructCircleResponse(circle),
	})
}

// circleMemberBody resolves the id and member username shared by the
// addMember and removeMember endpoints.
func (ro *router) circleMemberBody(w http.ResponseWriter, r *http.Request, reqID int64) (circleID, memberID int64, ok bool) {
	var body struct {
		ID     string `json:"id"`
		Member string `json:"member"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return 0, 0, false
	}
	circleID, err := parseID(body.ID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return 0, 0, false
	}
	memberID, err = ro.users.GetUserId(r.Context(), reqID, body.Member)
	if err != nil {
		writeServiceError(w, "user", err)
		return 0, 0, false
	}
	return circleID, memberID, true
}

func (ro *router) circleAddMemberHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	circleID, memberID, ok := ro.circleMemberBody(w, r, reqID)
	if !ok {
		return
	}
	if !ro.runValidators(ctx, w,
		ro.requireCircleExists(reqID, circleID),
		ro.requireCircleMember(reqID, circleID, memberID, false),
	) {
		return
	}
	circle, err := ro.circles.AddMember(ctx, reqID, circleID, memberID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The member was added to the circle successfully.",
		"circle":  constructCircleResponse(circle),
	})
}

func (ro *router) circleRemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	circleID, memberID, ok := ro.circleMemberBody(w, r, reqID)
	if !ok {
		return
	}
	if !ro.runValidators(ctx, w,
		ro.requireCircleExists(reqID, circleID),
		ro.requireCircleMember(reqID, circleID, memberID, true),
	) {
		return
	}
	circle, err := ro.circles.RemoveMember(ctx, reqID, circleID, memberID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The member was removed from the circle successfully.",
		"circle":  constructCircleResponse(circle),
	})
}

func (ro *router) circleFreetBody(w http.ResponseWriter, r *http.Request) (circleID, freetID int64, ok bool) {
	var body struct {
		ID      string `json:"id"`
		FreetID string `json:"freetId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return 0, 0, false
	}
	circleID, err := parseID(body.ID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return 0, 0, false
	}
	freetID, err = parseID(body.FreetID)
	if err != nil {
		writeServiceError(w, "freet", err)
		return 0, 0, false
	}
	return circleID, freetID, true
}

func (ro *router) circleAddFreetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	circleID, freetID, ok := ro.circleFreetBody(w, r)
	if !ok {
		return
	}
	if !ro.runValidators(ctx, w,
		ro.requireCircleExists(reqID, circleID),
		ro.requireFreetExists(reqID, freetID),
		ro.requireCircleFreet(reqID, circleID, freetID, false),
	) {
		return
	}
	circle, err := ro.circles.AddFreet(ctx, reqID, circleID, freetID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The freet was shared with the circle successfully.",
		"circle":  constructCircleResponse(circle),
	})
}

func (ro *router) circleRemoveFreetHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	circleID, freetID, ok := ro.circleFreetBody(w, r)
	if !ok {
		return
	}
	if !ro.runValidators(ctx, w,
		ro.requireCircleExists(reqID, circleID),
		ro.requireCircleFreet(reqID, circleID, freetID, true),
	) {
		return
	}
	circle, err := ro.circles.RemoveFreet(ctx, reqID, circleID, freetID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The freet was removed from the circle successfully.",
		"circle":  constructCircleResponse(circle),
	})
}

func (ro *router) deleteCircleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	if _, err := ro.sessionUserID(r); err != nil {
		writeServiceError(w, "user", err)
		return
	}
	circleID, err := parseID(mux.Vars(r)["circleId"])
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	deleted, err := ro.circles.DeleteCircle(ctx, reqID, circleID)
	if err != nil {
		writeServiceError(w, "circle", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "circleNotFound", "no circle was found for this request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The circle was deleted successfully.",
	})
}
