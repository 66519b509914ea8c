package services

import (
	"context"

	ft_metrics "freet/pkg/metrics"
	"freet/pkg/model"
	"freet/pkg/storage"
	"freet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CircleService interface {
	CreateCircle(ctx context.Context, reqID int64, name string, ownerID int64) (model.Circle, error)
	GetCircle(ctx context.Context, reqID int64, circleID int64) (model.Circle, error)
	ListCircles(ctx context.Context, reqID int64) ([]model.Circle, error)
	ListCirclesByOwner(ctx context.Context, reqID int64, ownerID int64) ([]model.Circle, error)
	ListCirclesByMember(ctx context.Context, reqID int64, memberID int64) ([]model.Circle, error)
	IsMember(ctx context.Context, reqID int64, circleID int64, userID int64) (bool, error)
	IsSharedFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (bool, error)
	AddMember(ctx context.Context, reqID int64, circleID int64, userID int64) (model.Circle, error)
	RemoveMember(ctx context.Context, reqID int64, circleID int64, userID int64) (model.Circle, error)
	AddFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (model.Circle, error)
	RemoveFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (model.Circle, error)
	RemoveFreetFromAll(ctx context.Context, reqID int64, freetID int64) error
	DeleteCircle(ctx context.Context, reqID int64, circleID int64) (bool, error)
}

type circleService struct {
	weaver.Implements[CircleService]
	weaver.WithConfig[circleServiceOptions]
	uniqueIdService weaver.Ref[UniqueIdService]
	mongoClient     *mongo.Client
	store           relationshipStore
}

type circleServiceOptions struct {
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	Region      string
}

func (c *circleService) Init(ctx context.Context) error {
	logger := c.Logger(ctx)

	region, err := utils.Region()
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	c.Config().Region = region

	c.mongoClient, err = storage.MongoDBClient(ctx, c.Config().MongoDBAddr, c.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	c.store = relationshipStore{
		coll:        c.mongoClient.Database("circle").Collection("circle"),
		anchorField: "circle_id",
	}

	logger.Info("circle service running!", "region", region,
		"mongodb_addr", c.Config().MongoDBAddr, "mongodb_port", c.Config().MongoDBPort,
	)
	return nil
}

// CreateCircle mints a new circle id; the owner is always the first member.
func (c *circleService) CreateCircle(ctx context.Context, reqID int64, name string, ownerID int64) (model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering CreateCircle", "req_id", reqID, "name", name, "owner_id", ownerID)

	circleID, err := c.uniqueIdService.Get().NextID(ctx, reqID)
	if err != nil {
		logger.Error("error generating circle id", "msg", err.Error())
		return model.Circle{}, err
	}
	circle := model.Circle{
		CircleID:  circleID,
		Name:      name,
		OwnerID:   ownerID,
		MemberIDs: []int64{ownerID},
		FreetIDs:  []int64{},
	}
	if err := c.store.insertGuarded(ctx, circleID, circle); err != nil {
		return model.Circle{}, err
	}
	return circle, nil
}

func (c *circleService) GetCircle(ctx context.Context, reqID int64, circleID int64) (model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering GetCircle", "req_id", reqID, "circle_id", circleID)
	return findAggregate[model.Circle](ctx, c.store, circleID)
}

// ListCircles retrieves circles sorted alphabetically by name.
func (c *circleService) ListCircles(ctx context.Context, reqID int64) ([]model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering ListCircles", "req_id", reqID)
	return findAggregates[model.Circle](ctx, c.store, bson.D{}, "name")
}

func (c *circleService) ListCirclesByOwner(ctx context.Context, reqID int64, ownerID int64) ([]model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering ListCirclesByOwner", "req_id", reqID, "owner_id", ownerID)
	return findAggregates[model.Circle](ctx, c.store, bson.D{{Key: "owner_id", Value: ownerID}}, "name")
}

func (c *circleService) ListCirclesByMember(ctx context.Context, reqID int64, memberID int64) ([]model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering ListCirclesByMember", "req_id", reqID, "member_id", memberID)
	return findAggregates[model.Circle](ctx, c.store, memberOfFilter("member_ids", memberID), "name")
}

func (c *circleService) IsMember(ctx context.Context, reqID int64, circleID int64, userID int64) (bool, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering IsMember", "req_id", reqID, "circle_id", circleID, "user_id", userID)
	return c.store.isMember(ctx, circleID, "member_ids", userID)
}

func (c *circleService) IsSharedFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (bool, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering IsSharedFreet", "req_id", reqID, "circle_id", circleID, "freet_id", freetID)
	return c.store.isMember(ctx, circleID, "freet_ids", freetID)
}

func (c *circleService) AddMember(ctx context.Context, reqID int64, circleID int64, userID int64) (model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering AddMember", "req_id", reqID, "circle_id", circleID, "user_id", userID)
	return c.mutateSet(ctx, circleID, "member_ids", userID, true)
}

func (c *circleService) RemoveMember(ctx context.Context, reqID int64, circleID int64, userID int64) (model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering RemoveMember", "req_id", reqID, "circle_id", circleID, "user_id", userID)
	return c.mutateSet(ctx, circleID, "member_ids", userID, false)
}

func (c *circleService) AddFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering AddFreet", "req_id", reqID, "circle_id", circleID, "freet_id", freetID)
	return c.mutateSet(ctx, circleID, "freet_ids", freetID, true)
}

func (c *circleService) RemoveFreet(ctx context.Context, reqID int64, circleID int64, freetID int64) (model.Circle, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering RemoveFreet", "req_id", reqID, "circle_id", circleID, "freet_id", freetID)
	return c.mutateSet(ctx, circleID, "freet_ids", freetID, false)
}

func (c *circleService) mutateSet(ctx context.Context, circleID int64, setField string, memberID int64, insert bool) (model.Circle, error) {
	var err error
	if insert {
		err = c.store.addMember(ctx, circleID, setField, memberID)
	} else {
		err = c.store.removeMember(ctx, circleID, setField, memberID)
	}
	if err != nil {
		return model.Circle{}, err
	}
	if insert {
		ft_metrics.MembershipAdds.Get(ft_metrics.KindLabel{Kind: "circle", Region: c.Config().Region}).Inc()
	} else {
		ft_metrics.MembershipRemoves.Get(ft_metrics.KindLabel{Kind: "circle", Region: c.Config().Region}).Inc()
	}
	return findAggregate[model.Circle](ctx, c.store, circleID)
}

// RemoveFreetFromAll pulls a deleted freet out of every circle that shares
// it. Used by the cascade consumer; safe to run repeatedly.
func (c *circleService) RemoveFreetFromAll(ctx context.Context, reqID int64, freetID int64) error {
	logger := c.Logger(ctx)
	logger.Debug("entering RemoveFreetFromAll", "req_id", reqID, "freet_id", freetID)

	result, err := c.store.coll.UpdateMany(ctx, memberOfFilter("freet_ids", freetID), pullFrom("freet_ids", freetID))
	if err != nil {
		logger.Error("error pulling freet from circles in mongodb", "msg", err.Error())
		return err
	}
	logger.Debug("pulled freet from circles", "#matched", result.MatchedCount, "#modified", result.ModifiedCount)
	return nil
}

func (c *circleService) DeleteCircle(ctx context.Context, reqID int64, circleID int64) (bool, error) {
	logger := c.Logger(ctx)
	logger.Debug("entering DeleteCircle", "req_id", reqID, "circle_id", circleID)
	return c.store.deleteByAnchor(ctx, circleID)
}
