package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"freet/pkg/services"
)

// A validator performs exactly one membership or existence lookup. Handlers
// run their validators in order and stop at the first failure, so a request
// never pays for lookups past the one that rejects it.
type validator struct {
	kind  string
	check func(ctx context.Context) error
}

func (ro *router) runValidators(ctx context.Context, w http.ResponseWriter, vs ...validator) bool {
	for _, v := range vs {
		if err := v.check(ctx); err != nil {
			writeServiceError(w, v.kind, err)
			return false
		}
	}
	return true
}

// session parses the Bearer token minted by Login and returns its claims.
func (ro *router) session(r *http.Request) (*services.Claims, error) {
	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return nil, services.ErrUnauthorized
	}
	claims := &services.Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(ro.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, services.ErrUnauthorized
	}
	return claims, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a valid id", services.ErrInvalidID, raw)
	}
	return id, nil
}

func (ro *router) requireUserExists(reqID int64, userID int64) validator {
	return validator{"user", func(ctx context.Context) error {
		_, err := ro.users.GetUser(ctx, reqID, userID)
		return err
	}}
}

func (ro *router) requireFreetExists(reqID int64, freetID int64) validator {
	return validator{"freet", func(ctx context.Context) error {
		_, err := ro.freets.ReadFreet(ctx, reqID, freetID)
		return err
	}}
}

func (ro *router) requireFollowExists(reqID int64, userID int64) validator {
	return validator{"follow", func(ctx context.Context) error {
		_, err := ro.follows.GetFollow(ctx, reqID, userID)
		return err
	}}
}

func (ro *router) requireCircleExists(reqID int64, circleID int64) validator {
	return validator{"circle", func(ctx context.Context) error {
		_, err := ro.circles.GetCircle(ctx, reqID, circleID)
		return err
	}}
}

func (ro *router) requireCircleMember(reqID int64, circleID, userID int64, wantMember bool) validator {
	return validator{"circle", func(ctx context.Context) error {
		member, err := ro.circles.IsMember(ctx, reqID, circleID, userID)
		if err != nil {
			return err
		}
		if wantMember && !member {
			return services.ErrNotMember
		}
		if !wantMember && member {
			return services.ErrAlreadyMember
		}
		return nil
	}}
}

func (ro *router) requireCircleFreet(reqID int64, circleID, freetID int64, wantShared bool) validator {
	return validator{"circle", func(ctx context.Context) error {
		shared, err := ro.circles.IsSharedFreet(ctx, reqID, circleID, freetID)
		if err != nil {
			return err
		}
		if wantShared && !shared {
			return services.ErrNotMember
		}
		if !wantShared && shared {
			return services.ErrAlreadyMember
		}
		return nil
	}}
}

func (ro *router) requireFollowing(reqID int64, userID, followID int64, wantFollowing bool) validator {
	return validator{"follow", func(ctx context.Context) error {
		following, err := ro.follows.IsFollowing(ctx, reqID, userID, followID)
		if err != nil {
			return err
		}
		if wantFollowing && !following {
			return services.ErrNotMember
		}
		if !wantFollowing && following {
			return services.ErrAlreadyMember
		}
		return nil
	}}
}
