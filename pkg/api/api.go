package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ServiceWeaver/weaver"
	"github.com/gorilla/mux"

	"freet/pkg/metrics"
	"freet/pkg/services"
	"freet/pkg/utils"
)

type server struct {
	weaver.Implements[weaver.Main]
	weaver.WithConfig[serverOptions]
	userService    weaver.Ref[services.UserService]
	freetService   weaver.Ref[services.FreetService]
	followService  weaver.Ref[services.FollowService]
	likeService    weaver.Ref[services.LikeService]
	refreetService weaver.Ref[services.RefreetService]
	circleService  weaver.Ref[services.CircleService]
	// the cascade workers have no RPC surface but must be deployed
	// alongside the frontend
	cascadeService weaver.Ref[services.CascadeService]
	lis            weaver.Listener `weaver:"api"`
}

type serverOptions struct {
	JWTSecret string `toml:"jwt_secret"`
	Region    string `toml:"region"`
}

// router holds the service handles behind their interfaces so tests can
// exercise the handlers with in-memory implementations.
type router struct {
	logger   *slog.Logger
	secret   string
	region   string
	users    services.UserService
	freets   services.FreetService
	follows  services.FollowService
	likes    services.LikeService
	refreets services.RefreetService
	circles  services.CircleService
}

func Serve(ctx context.Context, s *server) error {
	region, err := utils.Region()
	if err != nil {
		region = s.Config().Region
	}
	ro := &router{
		logger:   s.Logger(ctx),
		secret:   s.Config().JWTSecret,
		region:   region,
		users:    s.userService.Get(),
		freets:   s.freetService.Get(),
		follows:  s.followService.Get(),
		likes:    s.likeService.Get(),
		refreets: s.refreetService.Get(),
		circles:  s.circleService.Get(),
	}
	handler := newRouter(ro)
	s.Logger(ctx).Info("freet api available", "addr", s.lis, "region", region,
		"cascade_attached", s.cascadeService.Get() != nil)
	return http.Serve(s.lis, handler)
}

func newRouter(ro *router) *mux.Router {
	r := mux.NewRouter()
	ap := r.PathPrefix("/api").Subrouter()

	ap.Handle("/users", ro.instrument("register_user", ro.registerUserHandler)).Methods(http.MethodPost)
	ap.Handle("/users/session", ro.instrument("login", ro.loginHandler)).Methods(http.MethodPost)
	ap.Handle("/users/{username}", ro.instrument("get_user", ro.getUserHandler)).Methods(http.MethodGet)

	ap.Handle("/freets", ro.instrument("list_freets", ro.listFreetsHandler)).Methods(http.MethodGet)
	ap.Handle("/freets", ro.instrument("store_freet", ro.storeFreetHandler)).Methods(http.MethodPost)
	ap.Handle("/freets/{freetId}", ro.instrument("edit_freet", ro.editFreetHandler)).Methods(http.MethodPut)
	ap.Handle("/freets/{freetId}", ro.instrument("delete_freet", ro.deleteFreetHandler)).Methods(http.MethodDelete)

	ap.Handle("/follows", ro.instrument("list_follows", ro.listFollowsHandler)).Methods(http.MethodGet)
	ap.Handle("/follows", ro.instrument("create_follow", ro.createFollowHandler)).Methods(http.MethodPost)
	ap.Handle("/follows", ro.instrument("update_follow", ro.updateFollowHandler)).Methods(http.MethodPut)
	ap.Handle("/follows/{userId}", ro.instrument("delete_follow", ro.deleteFollowHandler)).Methods(http.MethodDelete)

	likes := ro.likeReactions()
	ap.Handle("/likes", ro.instrument("list_likes", ro.listReactionsHandler(likes))).Methods(http.MethodGet)
	ap.Handle("/likes/count", ro.instrument("count_likes", ro.countReactionHandler(likes))).Methods(http.MethodGet)
	ap.Handle("/likes", ro.instrument("create_like", ro.createReactionHandler(likes))).Methods(http.MethodPost)
	ap.Handle("/likes/add", ro.instrument("add_like", ro.addReactionHandler(likes))).Methods(http.MethodPut)
	ap.Handle("/likes/remove", ro.instrument("remove_like", ro.removeReactionHandler(likes))).Methods(http.MethodPut)
	ap.Handle("/likes/{freetId}", ro.instrument("delete_like", ro.deleteReactionHandler(likes))).Methods(http.MethodDelete)

	refreets := ro.refreetReactions()
	ap.Handle("/refreets", ro.instrument("list_refreets", ro.listReactionsHandler(refreets))).Methods(http.MethodGet)
	ap.Handle("/refreets/count", ro.instrument("count_refreets", ro.countReactionHandler(refreets))).Methods(http.MethodGet)
	ap.Handle("/refreets", ro.instrument("create_refreet", ro.createReactionHandler(refreets))).Methods(http.MethodPost)
	ap.Handle("/refreets/add", ro.instrument("add_refreet", ro.addReactionHandler(refreets))).Methods(http.MethodPut)
	ap.Handle("/refreets/remove", ro.instrument("remove_refreet", ro.removeReactionHandler(refreets))).Methods(http.MethodPut)
	ap.Handle("/refreets/{freetId}", ro.instrument("delete_refreet", ro.deleteReactionHandler(refreets))).Methods(http.MethodDelete)

	ap.Handle("/circles", ro.instrument("list_circles", ro.listCirclesHandler)).Methods(http.MethodGet)
	ap.Handle("/circles", ro.instrument("create_circle", ro.createCircleHandler)).Methods(http.MethodPost)
	ap.Handle("/circles/addMember", ro.instrument("circle_add_member", ro.circleAddMemberHandler)).Methods(http.MethodPut)
	ap.Handle("/circles/removeMember", ro.instrument("circle_remove_member", ro.circleRemoveMemberHandler)).Methods(http.MethodPut)
	ap.Handle("/circles/addFreet", ro.instrument("circle_add_freet", ro.circleAddFreetHandler)).Methods(http.MethodPut)
	ap.Handle("/circles/removeFreet", ro.instrument("circle_remove_freet", ro.circleRemoveFreetHandler)).Methods(http.MethodPut)
	ap.Handle("/circles/{circleId}", ro.instrument("delete_circle", ro.deleteCircleHandler)).Methods(http.MethodDelete)

	return r
}

func (ro *router) instrument(label string, fn func(http.ResponseWriter, *http.Request)) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fn(w, r)
		ms := float64(time.Since(start).Nanoseconds()) / 1e6
		metrics.RequestDurationMs.Get(metrics.RegionLabel{Region: ro.region}).Put(ms)
	}
	return weaver.InstrumentHandlerFunc(label, handler)
}
