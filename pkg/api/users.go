package api

import (
	"encoding/json"
	"math/rand"
	"net/http"

	"github.com/gorilla/mux"

	"freet/pkg/services"
)

func (ro *router) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	var body struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Username  string `json:"username"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "invalidBody", "username and password are required")
		return
	}
	userID, err := ro.users.RegisterUser(ctx, reqID, body.FirstName, body.LastName, body.Username, body.Password)
	if err != nil {
		writeServiceError(w, "user", err)
		return
	}
	user, err := ro.users.GetUser(ctx, reqID, userID)
	if err != nil {
		writeServiceError(w, "user", err)
		return
	}
	ro.logger.Info("registered user", "req_id", reqID, "user_id", userID, "username", body.Username)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Your account was created successfully.",
		"user":    constructUserResponse(user),
	})
}

func (ro *router) loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalidBody", "request body must be valid json")
		return
	}
	token, err := ro.users.Login(ctx, reqID, body.Username, body.Password)
	if err != nil {
		writeServiceError(w, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "You have been logged in successfully.",
		"token":   token,
	})
}

func (ro *router) getUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := rand.Int63()
	username := mux.Vars(r)["username"]
	user, err := ro.users.GetUserByUsername(ctx, reqID, username)
	if err != nil {
		writeServiceError(w, "user", err)
		return
	}
	writeJSON(w, http.StatusOK, constructUserResponse(user))
}

// sessionUserID parses the caller's login token and resolves its user id.
func (ro *router) sessionUserID(r *http.Request) (int64, error) {
	claims, err := ro.session(r)
	if err != nil {
		return 0, err
	}
	userID, err := parseID(claims.UserID)
	if err != nil {
		return 0, services.ErrUnauthorized
	}
	return userID, nil
}
