package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	ft_metrics "freet/pkg/metrics"
	"freet/pkg/model"
	"freet/pkg/storage"
	"freet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type FollowService interface {
	CreateFollow(ctx context.Context, reqID int64, userID int64) (model.Follow, error)
	GetFollow(ctx context.Context, reqID int64, userID int64) (model.Follow, error)
	ListFollows(ctx context.Context, reqID int64) ([]model.Follow, error)
	IsFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (bool, error)
	AddFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (model.Follow, error)
	RemoveFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (model.Follow, error)
	GetFollowers(ctx context.Context, reqID int64, userID int64) ([]int64, error)
	GetFollowing(ctx context.Context, reqID int64, userID int64) ([]int64, error)
	DeleteFollow(ctx context.Context, reqID int64, userID int64) (bool, error)
}

type followService struct {
	weaver.Implements[FollowService]
	weaver.WithConfig[followServiceOptions]
	mongoClient *mongo.Client
	redisClient *redis.Client
	store       relationshipStore
}

type followServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	RedisAddr   string `toml:"redis_address"`
	RedisPort   int    `toml:"redis_port"`
	Region      string
}

func (f *followService) Init(ctx context.Context) error {
	logger := f.Logger(ctx)

	region, err := utils.Region()
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	f.Config().Region = region

	f.mongoClient, err = storage.MongoDBClient(ctx, f.Config().MongoDBAddr, f.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	f.redisClient = storage.RedisClient(f.Config().RedisAddr, f.Config().RedisPort)
	f.store = relationshipStore{
		coll:        f.mongoClient.Database("follow").Collection("follow"),
		anchorField: "user_id",
	}

	logger.Info("follow service running!", "region", f.Config().Region,
		"mongodb_addr", f.Config().MongoDBAddr, "mongodb_port", f.Config().MongoDBPort,
		"redis_addr", f.Config().RedisAddr, "redis_port", f.Config().RedisPort,
	)
	return nil
}

// CreateFollow writes the empty aggregate for a user. It is called once per
// user, right after registration.
func (f *followService) CreateFollow(ctx context.Context, reqID int64, userID int64) (model.Follow, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering CreateFollow", "req_id", reqID, "user_id", userID)

	follow := model.Follow{
		UserID:    userID,
		Following: []int64{},
		Followers: []int64{},
	}
	if err := f.store.insertGuarded(ctx, userID, follow); err != nil {
		return model.Follow{}, err
	}
	return follow, nil
}

// GetFollow assembles the aggregate from the cached edge reads so that every
// lookup warms the redis sorted sets the mutation path maintains.
func (f *followService) GetFollow(ctx context.Context, reqID int64, userID int64) (model.Follow, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering GetFollow", "req_id", reqID, "user_id", userID)

	exists, err := f.store.exists(ctx, userID)
	if err != nil {
		return model.Follow{}, err
	}
	if !exists {
		return model.Follow{}, ErrNotFound
	}
	following, err := f.cachedEdgeSet(ctx, reqID, userID, "following")
	if err != nil {
		return model.Follow{}, err
	}
	followers, err := f.cachedEdgeSet(ctx, reqID, userID, "followers")
	if err != nil {
		return model.Follow{}, err
	}
	if following == nil {
		following = []int64{}
	}
	if followers == nil {
		followers = []int64{}
	}
	return model.Follow{UserID: userID, Following: following, Followers: followers}, nil
}

func (f *followService) ListFollows(ctx context.Context, reqID int64) ([]model.Follow, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering ListFollows", "req_id", reqID)
	return findAggregates[model.Follow](ctx, f.store, bson.D{}, "user_id")
}

func (f *followService) IsFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (bool, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering IsFollowing", "req_id", reqID, "user_id", userID, "follow_id", followID)
	return f.store.isMember(ctx, userID, "following", followID)
}

// AddFollowing inserts followID into the user's following set and the user
// into the target's followers set. The two writes are idempotent $addToSet
// updates issued concurrently; either interleaving converges to the same
// state, and a retry after a partial failure completes the missing side.
func (f *followService) AddFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (model.Follow, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering AddFollowing", "req_id", reqID, "user_id", userID, "follow_id", followID)

	timestamp := time.Now()
	var errs [3]error
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		// user -> followee edge
		defer wg.Done()
		errs[0] = f.store.addMember(ctx, userID, "following", followID)
	}()
	go func() {
		// followee -> follower edge
		defer wg.Done()
		errs[1] = f.store.addMember(ctx, followID, "followers", userID)
	}()
	go func() {
		defer wg.Done()
		errs[2] = f.cacheEdge(ctx, userID, followID, timestamp)
	}()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return model.Follow{}, err
		}
	}
	ft_metrics.MembershipAdds.Get(ft_metrics.KindLabel{Kind: "follow", Region: f.Config().Region}).Inc()
	return findAggregate[model.Follow](ctx, f.store, userID)
}

// cacheEdge mirrors a new edge into the redis sorted-set caches, but only
// for sides that are already cached: seeding a single member would make a
// partial cache look complete.
func (f *followService) cacheEdge(ctx context.Context, userID int64, followID int64, timestamp time.Time) error {
	userIDStr := strconv.FormatInt(userID, 10)
	followIDStr := strconv.FormatInt(followID, 10)

	card, err := f.redisClient.ZCard(ctx, userIDStr+":following").Result()
	if err != nil {
		return err
	}
	if card > 0 {
		err = f.redisClient.ZAddNX(ctx, userIDStr+":following", redis.Z{
			Member: followID,
			Score:  float64(timestamp.Unix()),
		}).Err()
		if err != nil {
			return err
		}
	}
	card, err = f.redisClient.ZCard(ctx, followIDStr+":followers").Result()
	if err != nil {
		return err
	}
	if card > 0 {
		err = f.redisClient.ZAddNX(ctx, followIDStr+":followers", redis.Z{
			Member: userID,
			Score:  float64(timestamp.Unix()),
		}).Err()
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveFollowing is the inverse of AddFollowing. Pulling an absent member
// is a no-op, so removing twice is safe.
func (f *followService) RemoveFollowing(ctx context.Context, reqID int64, userID int64, followID int64) (model.Follow, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering RemoveFollowing", "req_id", reqID, "user_id", userID, "follow_id", followID)

	userIDStr := strconv.FormatInt(userID, 10)
	followIDStr := strconv.FormatInt(followID, 10)
	var errs [3]error
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		// user -> followee edge
		defer wg.Done()
		errs[0] = f.store.removeMember(ctx, userID, "following", followID)
	}()
	go func() {
		// followee -> follower edge
		defer wg.Done()
		errs[1] = f.store.removeMember(ctx, followID, "followers", userID)
	}()
	go func() {
		defer wg.Done()
		_, errs[2] = f.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, userIDStr+":following", followID)
			pipe.ZRem(ctx, followIDStr+":followers", userID)
			return nil
		})
	}()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return model.Follow{}, err
		}
	}
	ft_metrics.MembershipRemoves.Get(ft_metrics.KindLabel{Kind: "follow", Region: f.Config().Region}).Inc()
	return findAggregate[model.Follow](ctx, f.store, userID)
}

// GetFollowers attempts to get the ids from redis if cached
// Otherwise, it gets the followers from mongodb and updates redis with the ids
func (f *followService) GetFollowers(ctx context.Context, reqID int64, userID int64) ([]int64, error) {
	return f.cachedEdgeSet(ctx, reqID, userID, "followers")
}

// GetFollowing attempts to get the ids from redis if cached
// Otherwise, it gets the followees from mongodb and updates redis with the ids
func (f *followService) GetFollowing(ctx context.Context, reqID int64, userID int64) ([]int64, error) {
	return f.cachedEdgeSet(ctx, reqID, userID, "following")
}

func (f *followService) cachedEdgeSet(ctx context.Context, reqID int64, userID int64, side string) ([]int64, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering cachedEdgeSet", "req_id", reqID, "user_id", userID, "side", side)

	userIDStr := strconv.FormatInt(userID, 10)
	key := userIDStr + ":" + side
	numCached, err := f.redisClient.ZCard(ctx, key).Result()
	if err != nil {
		logger.Error("error reading number of edges from cache", "msg", err.Error())
	}
	if numCached > 0 {
		// edges are cached in redis so we retrieve them
		result, err := f.redisClient.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			logger.Error("error reading edges from cache", "msg", err.Error())
			return nil, err
		}
		var ids []int64
		for _, r := range result {
			id, err := strconv.ParseInt(r, 10, 64)
			if err != nil {
				logger.Error("error parsing user id from redis to int64", "msg", err.Error())
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	// did not find edges in redis
	// look up in mongodb and update redis
	follow, err := findAggregate[model.Follow](ctx, f.store, userID)
	if err == ErrNotFound {
		// return empty array of ids
		return nil, nil
	}
	if err != nil {
		logger.Error("error reading edges from mongodb", "msg", err.Error())
		return nil, err
	}
	ids := follow.Followers
	if side == "following" {
		ids = follow.Following
	}
	_, err = f.redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			err := pipe.ZAddNX(ctx, key, redis.Z{
				Member: id,
				Score:  float64(i),
			}).Err()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("error updating redis with edges from mongodb", "msg", err.Error())
		return nil, err
	}
	return ids, nil
}

// DeleteFollow severs every edge with the counterpart aggregates before
// removing the user's own record. Each severing step is idempotent, so a
// crash mid-cascade is repaired by running the delete again.
func (f *followService) DeleteFollow(ctx context.Context, reqID int64, userID int64) (bool, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering DeleteFollow", "req_id", reqID, "user_id", userID)

	follow, err := findAggregate[model.Follow](ctx, f.store, userID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, followID := range follow.Following {
		if _, err := f.RemoveFollowing(ctx, reqID, userID, followID); err != nil && err != ErrNotFound {
			return false, err
		}
	}
	for _, followerID := range follow.Followers {
		if _, err := f.RemoveFollowing(ctx, reqID, followerID, userID); err != nil && err != ErrNotFound {
			return false, err
		}
	}

	userIDStr := strconv.FormatInt(userID, 10)
	err = f.redisClient.Del(ctx, userIDStr+":following", userIDStr+":followers").Err()
	if err != nil {
		logger.Error("error deleting edge caches from redis", "msg", err.Error())
	}
	return f.store.deleteByAnchor(ctx, userID)
}
