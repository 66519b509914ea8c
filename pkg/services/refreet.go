package services

import (
	"context"

	"freet/pkg/model"
	"freet/pkg/storage"
	"freet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/mongo"
)

// RefreetService tracks reshares. It is structurally the same aggregate as
// likes, so both components share reactionCore.
type RefreetService interface {
	CreateRefreet(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error)
	GetRefreet(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error)
	ListRefreets(ctx context.Context, reqID int64) ([]model.Reaction, error)
	ListRefreetsByUser(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error)
	HasRefreeted(ctx context.Context, reqID int64, userID int64, freetID int64) (bool, error)
	AddRefreet(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error)
	RemoveRefreet(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error)
	CountRefreets(ctx context.Context, reqID int64, freetID int64) (int64, error)
	DeleteRefreet(ctx context.Context, reqID int64, freetID int64) (bool, error)
}

type refreetService struct {
	weaver.Implements[RefreetService]
	weaver.WithConfig[refreetServiceOptions]
	mongoClient *mongo.Client
	core        reactionCore
}

type refreetServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	RedisAddr   string `toml:"redis_address"`
	RedisPort   int    `toml:"redis_port"`
	Region      string
}

func (r *refreetService) Init(ctx context.Context) error {
	logger := r.Logger(ctx)

	region, err := utils.Region()
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	r.Config().Region = region

	r.mongoClient, err = storage.MongoDBClient(ctx, r.Config().MongoDBAddr, r.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	r.core = reactionCore{
		kind:   "refreet",
		region: region,
		store: relationshipStore{
			coll:        r.mongoClient.Database("refreet").Collection("refreet"),
			anchorField: "freet_id",
		},
		redisClient: storage.RedisClient(r.Config().RedisAddr, r.Config().RedisPort),
	}

	logger.Info("refreet service running!", "region", region,
		"mongodb_addr", r.Config().MongoDBAddr, "mongodb_port", r.Config().MongoDBPort,
		"redis_addr", r.Config().RedisAddr, "redis_port", r.Config().RedisPort,
	)
	return nil
}

func (r *refreetService) CreateRefreet(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return r.core.create(ctx, r.Logger(ctx), reqID, freetID)
}

func (r *refreetService) GetRefreet(ctx context.Context, reqID int64, freetID int64) (model.Reaction, error) {
	return r.core.get(ctx, r.Logger(ctx), reqID, freetID)
}

func (r *refreetService) ListRefreets(ctx context.Context, reqID int64) ([]model.Reaction, error) {
	return r.core.list(ctx, r.Logger(ctx), reqID)
}

func (r *refreetService) ListRefreetsByUser(ctx context.Context, reqID int64, userID int64) ([]model.Reaction, error) {
	return r.core.listByUser(ctx, r.Logger(ctx), reqID, userID)
}

func (r *refreetService) HasRefreeted(ctx context.Context, reqID int64, userID int64, freetID int64) (bool, error) {
	return r.core.has(ctx, r.Logger(ctx), reqID, userID, freetID)
}

func (r *refreetService) AddRefreet(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return r.core.add(ctx, r.Logger(ctx), reqID, userID, freetID)
}

func (r *refreetService) RemoveRefreet(ctx context.Context, reqID int64, userID int64, freetID int64) (model.Reaction, error) {
	return r.core.remove(ctx, r.Logger(ctx), reqID, userID, freetID)
}

func (r *refreetService) CountRefreets(ctx context.Context, reqID int64, freetID int64) (int64, error) {
	return r.core.count(ctx, r.Logger(ctx), reqID, freetID)
}

func (r *refreetService) DeleteRefreet(ctx context.Context, reqID int64, freetID int64) (bool, error) {
	return r.core.delete(ctx, r.Logger(ctx), reqID, freetID)
}
