package services

import (
	"context"

	"freet/pkg/model"
	"freet/pkg/storage"
	"freet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/mongo"
)

type LikeService interface {
	CreateLike(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error)
	GetLike(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error)
	ListLikes(ctx context.Context, reqID int64) ([]model.Reaction, error)
	ListLikesByUser(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error)
	HasLiked(ctx context.Context, reqID int64, userID int64, freetID int64) (bool, error)
	AddLike(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error)
	RemoveLike(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error)
	CountLikes(ctx context.Context, reqID int64, freetID int64) (int64, error)
	DeleteLike(ctx context.Context, reqID int64, freetID int64) (bool, error)
}

type likeService struct {
	weaver.Implements[LikeService]
	weaver.WithConfig[likeServiceOptions]
	mongoClient *mongo.Client
	core        reactionCore
}

type likeServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	RedisAddr   string `toml:"redis_address"`
	RedisPort   int    `toml:"redis_port"`
	Region      string
}

func (l *likeService) Init(ctx context.Context) error {
	logger := l.Logger(ctx)

	region, err := utils.Region()
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	l.Config().Region = region

	l.mongoClient, err = storage.MongoDBClient(ctx, l.Config().MongoDBAddr, l.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	l.core = reactionCore{
		kind:   "like",
		region: region,
		store: relationshipStore{
			coll:        l.mongoClient.Database("like").Collection("like"),
			anchorField: "freet_id",
		},
		redisClient: storage.RedisClient(l.Config().RedisAddr, l.Config().RedisPort),
	}

	logger.Info("like service running!", "region", region,
		"mongodb_addr", l.Config().MongoDBAddr, "mongodb_port", l.Config().MongoDBPort,
		"redis_addr", l.Config().RedisAddr, "redis_port", l.Config().RedisPort,
	)
	return nil
}

func (l *likeService) CreateLike(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return l.core.create(ctx, l.Logger(ctx), reqID, freetID)
}

func (l *likeService) GetLike(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return l.core.get(ctx, l.Logger(ctx), reqID, freetID)
}

func (l *likeService) ListLikes(ctx context.Context, reqID int64) ([]model.Reaction, error) {
	return l.core.list(ctx, l.Logger(ctx), reqID)
}

func (l *likeService) ListLikesByUser(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error) {
	return l.core.listByUser(ctx, l.Logger(ctx), reqID, userID)
}

func (l *likeService) HasLiked(ctx context.Context, reqID int64, userID int64, freetID int64) (bool, error) {
	return l.core.has(ctx, l.Logger(ctx), reqID, userID, freetID)
}

func (l *likeService) AddLike(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return l.core.add(ctx, l.Logger(ctx), reqID, userID, freetID)
}

func (l *likeService) RemoveLike(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return l.core.remove(ctx, l.Logger(ctx), reqID, userID, freetID)
}

func (l *likeService) CountLikes(ctx context.Context, reqID int64, freetID int64) (int64, error) {
	return l.core.count(ctx, l.Logger(ctx), reqID, freetID)
}

func (l *likeService) DeleteLike(ctx context.Context, reqID int64, freetID int64) (bool, error) {
	return l.core.delete(ctx, l.Logger(ctx), reqID, freetID)
}
