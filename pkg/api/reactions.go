package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/gorilla/mux"

	"freet/pkg/model"
)

// reactionRoutes binds the shared like/refreet handler bodies to one of the
// two per-freet reaction services. The two surfaces are identical except
// for the kind word in paths, envelope keys, and messages.
type reactionRoutes struct {
	kind       string
	create     func(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error)
	get        func(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error)
	list       func(ctx context.Context, reqID int64) ([]model.Reaction, error)
	listByUser func(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error)
	add        func(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error)
	remove     func(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error)
	count      func(ctx context.Context, reqID int64, freetID int64) (int64, error)
	delete     func(ctx context.Context, reqID int64, freetID int64) (bool, error)
}

func (ro *router) likeReactions() reactionRoutes {
	return reactionRoutes{
		kind:       "like",
		create:     ro.likes.CreateLike,
		get:        ro.likes.GetLike,
		list:       ro.likes.ListLikes,
		listByUser: ro.likes.ListLikesByUser,
		add:        ro.likes.AddLike,
		remove:     ro.likes.RemoveLike,
		count:      ro.likes.CountLikes,
		delete:     ro.likes.DeleteLike,
	}
}

func (ro *router) refreetReactions() reactionRoutes {
	return reactionRoutes{
		kind:       "refreet",
		create:     ro.refreets.CreateRefreet,
		get:        ro.refreets.GetRefreet,
		list:       ro.refreets.ListRefreets,
		listByUser: ro.refreets.ListRefreetsByUser,
		add:        ro.refreets.AddRefreet,
		remove:     ro.refreets.RemoveRefreet,
		count:      ro.refreets.CountRefreets,
		delete:     ro.refreets.DeleteRefreet,
	}
}

func (ro *router) requireReactionExists(rr reactionRoutes, reqID int64, freetID int64) validator {
	return validator{rr.kind, func(ctx context.Context) error {
		_, err := rr.get(ctx, reqID, freetID)
		return err
	}}
}

// Lookups filter with ?freetId= or ?userId=, the names this surface has
// always used for the reaction kinds.
func (ro *router) listReactionsHandler(rr reactionRoutes) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := rand.Int63()
		query := r.URL.Query()
		if raw := query.Get("freetId"); raw != "" {
			freetID, err := parseID(raw)
			if err != nil {
				writeServiceError(w, rr.kind, err)
				return
			}
			reaction, err := rr.get(ctx, reqID, freetID)
			if err != nil {
				writeServiceError(w, rr.kind, err)
				return
			}
			writeJSON(w, http.StatusOK, constructReactionResponse(reaction))
			return
		}
		var reactions []model.Reaction
		var err error
		if raw := query.Get("userId"); raw != "" {
			var userID int64
			userID, err = parseID(raw)
			if err != nil {
				writeServiceError(w, rr.kind, err)
				return
			}
			reactions, err = rr.listByUser(ctx, reqID, userID)
		} else {
			reactions, err = rr.list(ctx, reqID)
		}
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		out := make([]ReactionResponse, 0, len(reactions))
		for _, reaction := range reactions {
			out = append(out, constructReactionResponse(reaction))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (ro *router) createReactionHandler(rr reactionRoutes) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := rand.Int63()
		if _, err := ro.sessionUserID(r); err != nil {
			writeServiceError(w, "user", err)
			return
		}
		var body struct {
			FreetID string `json:"freetId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
			return
		}
		freetID, err := parseID(body.FreetID)
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		if !ro.runValidators(ctx, w, ro.requireFreetExists(reqID, freetID)) {
			return
		}
		reaction, err := rr.create(ctx, reqID, freetID)
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "The " + rr.kind + " aggregate was created successfully.",
			rr.kind:   constructReactionResponse(reaction),
		})
	}
}

// Adds and removes are idempotent: repeating the same PUT leaves the member
// set unchanged and still answers 200.
func (ro *router) addReactionHandler(rr reactionRoutes) func(http.ResponseWriter, *http.Request) {
	return ro.mutateReactionHandler(rr, true)
}

func (ro *router) removeReactionHandler(rr reactionRoutes) func(http.ResponseWriter, *http.Request) {
	return ro.mutateReactionHandler(rr, false)
}

func (ro *router) mutateReactionHandler(rr reactionRoutes, add bool) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := rand.Int63()
		if _, err := ro.sessionUserID(r); err != nil {
			writeServiceError(w, "user", err)
			return
		}
		var body struct {
			FreetID string `json:"freetId"`
			UserID  string `json:"userId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
			return
		}
		freetID, err := parseID(body.FreetID)
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		userID, err := parseID(body.UserID)
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		if !ro.runValidators(ctx, w,
			ro.requireReactionExists(rr, reqID, freetID),
			ro.requireUserExists(reqID, userID),
		) {
			return
		}
		var reaction model.Reaction
		if add {
			reaction, err = rr.add(ctx, reqID, userID, freetID)
		} else {
			reaction, err = rr.remove(ctx, reqID, userID, freetID)
		}
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "The " + rr.kind + " aggregate was updated successfully.",
			rr.kind:   constructReactionResponse(reaction),
		})
	}
}

// countReactionHandler serves the per-freet counter backing the client's
// like/refreet badges; the read goes through the redis count cache.
func (ro *router) countReactionHandler(rr reactionRoutes) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := rand.Int63()
		freetID, err := parseID(r.URL.Query().Get("freetId"))
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		n, err := rr.count(ctx, reqID, freetID)
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"freet": formatID(freetID),
			"count": n,
		})
	}
}

func (ro *router) deleteReactionHandler(rr reactionRoutes) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := rand.Int63()
		if _, err := ro.sessionUserID(r); err != nil {
			writeServiceError(w, "user", err)
			return
		}
		freetID, err := parseID(mux.Vars(r)["freetId"])
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		deleted, err := rr.delete(ctx, reqID, freetID)
		if err != nil {
			writeServiceError(w, rr.kind, err)
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, rr.kind+"NotFound", "no "+rr.kind+" was found for this request")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "The " + rr.kind + " aggregate was deleted successfully.",
		})
	}
}
