package services

import (
	"context"
	"log/slog"
	"strconv"

	ft_metrics "freet/pkg/metrics"
	"freet/pkg/model"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

// reactionCore implements the aggregate logic shared by likes and refreets:
// one document per freet holding the set of reacting users. The like and
// refreet components differ only in collection, metrics label and cache key
// suffix.
type reactionCore struct {
	kind        string // "like" or "refreet"
	region      string
	store       relationshipStore
	redisClient *redis.Client
}

func (c *reactionCore) countKey(freetID int64) string {
	return strconv.FormatInt(freetID, 10) + ":" + c.kind + "s"
}

// create writes the empty aggregate for a freet. Aggregates are created
// lazily, on the first reaction-triggering request.
func (c *reactionCore) create(ctx context.Context, logger *slog.Logger, reqID int64, freetID int64) (model.Reaction, error) {
	logger.Debug("entering create", "kind", c.kind, "req_id", reqID, "freet_id", freetID)

	reaction := model.Reaction{
		FreetID: freetID,
		UserIDs: []int64{},
	}
	if err := c.store.insertGuarded(ctx, freetID, reaction); err != nil {
		return model.Reaction{}, err
	}
	return reaction, nil
}

func (c *reactionCore) get(ctx context.Context, logger *slog.Logger, reqID int64, freetID int64) (model.Reaction, error) {
	logger.Debug("entering get", "kind", c.kind, "req_id", reqID, "freet_id", freetID)
	return findAggregate[model.Reaction](ctx, c.store, freetID)
}

func (c *reactionCore) list(ctx context.Context, logger *slog.Logger, reqID int64) ([]model.Reaction, error) {
	logger.Debug("entering list", "kind", c.kind, "req_id", reqID)
	return findAggregates[model.Reaction](ctx, c.store, bson.D{}, "freet_id")
}

func (c *reactionCore) listByUser(ctx context.Context, logger *slog.Logger, reqID int64, userID int64) ([]model.Reaction, error) {
	logger.Debug("entering listByUser", "kind", c.kind, "req_id", reqID, "user_id", userID)
	return findAggregates[model.Reaction](ctx, c.store, memberOfFilter("user_ids", userID), "freet_id")
}

func (c *reactionCore) has(ctx context.Context, logger *slog.Logger, reqID int64, userID int64, freetID int64) (bool, error) {
	logger.Debug("entering has", "kind", c.kind, "req_id", reqID, "user_id", userID, "freet_id", freetID)
	return c.store.isMember(ctx, freetID, "user_ids", userID)
}

// add idempotently inserts the user into the aggregate's set and re-fetches
// the persisted state. Repeating the call leaves the set unchanged.
func (c *reactionCore) add(ctx context.Context, logger *slog.Logger, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	logger.Debug("entering add", "kind", c.kind, "req_id", reqID, "user_id", userID, "freet_id", freetID)

	if err := c.store.addMember(ctx, freetID, "user_ids", userID); err != nil {
		return model.Reaction{}, err
	}
	if err := c.redisClient.Del(ctx, c.countKey(freetID)).Err(); err != nil {
		logger.Error("error invalidating count cache", "kind", c.kind, "msg", err.Error())
	}
	ft_metrics.MembershipAdds.Get(ft_metrics.KindLabel{Kind: c.kind, Region: c.region}).Inc()
	return findAggregate[model.Reaction](ctx, c.store, freetID)
}

// remove idempotently pulls the user from the set; removing an absent user
// is a no-op, not an error.
func (c *reactionCore) remove(ctx context.Context, logger *slog.Logger, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	logger.Debug("entering remove", "kind", c.kind, "req_id", reqID, "user_id", userID, "freet_id", freetID)

	if err := c.store.removeMember(ctx, freetID, "user_ids", userID); err != nil {
		return model.Reaction{}, err
	}
	if err := c.redisClient.Del(ctx, c.countKey(freetID)).Err(); err != nil {
		logger.Error("error invalidating count cache", "kind", c.kind, "msg", err.Error())
	}
	ft_metrics.MembershipRemoves.Get(ft_metrics.KindLabel{Kind: c.kind, Region: c.region}).Inc()
	return findAggregate[model.Reaction](ctx, c.store, freetID)
}

// count reads the reaction count through the redis cache.
func (c *reactionCore) count(ctx context.Context, logger *slog.Logger, reqID int64, freetID int64) (int64, error) {
	logger.Debug("entering count", "kind", c.kind, "req_id", reqID, "freet_id", freetID)

	n, err := c.redisClient.Get(ctx, c.countKey(freetID)).Int64()
	if err == nil {
		return n, nil
	}
	if err != redis.Nil {
		logger.Error("error reading count from cache", "kind", c.kind, "msg", err.Error())
		return 0, err
	}
	reaction, err := findAggregate[model.Reaction](ctx, c.store, freetID)
	if err != nil {
		return 0, err
	}
	n = int64(len(reaction.UserIDs))
	if err := c.redisClient.Set(ctx, c.countKey(freetID), n, 0).Err(); err != nil {
		return 0, err
	}
	return n, nil
}

// delete removes the aggregate itself; used by the cascade when the anchor
// freet is deleted.
func (c *reactionCore) delete(ctx context.Context, logger *slog.Logger, reqID int64, freetID int64) (bool, error) {
	logger.Debug("entering delete", "kind", c.kind, "req_id", reqID, "freet_id", freetID)

	if err := c.redisClient.Del(ctx, c.countKey(freetID)).Err(); err != nil {
		logger.Error("error deleting count cache", "kind", c.kind, "msg", err.Error())
	}
	return c.store.deleteByAnchor(ctx, freetID)
}
