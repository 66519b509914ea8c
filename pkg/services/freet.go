package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	ft_metrics "freet/pkg/metrics"
	"freet/pkg/model"
	"freet/pkg/storage"
	ft_trace "freet/pkg/trace"
	"freet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type FreetService interface {
	StoreFreet(ctx context.Context, reqID int64, authorID int64, text string) (model.Freet, error)
	ReadFreet(ctx context.Context, reqID int64, freetID int64) (model.Freet, error)
	ReadFreets(ctx context.Context, reqID int64, freetIDs []int64) ([]model.Freet, error)
	ListFreets(ctx context.Context, reqID int64) ([]model.Freet, error)
	ListFreetsByAuthor(ctx context.Context, reqID int64, authorID int64) ([]model.Freet, error)
	EditFreet(ctx context.Context, reqID int64, freetID int64, text string) (model.Freet, error)
	DeleteFreet(ctx context.Context, reqID int64, freetID int64) (bool, error)
}

var _ weaver.NotRetriable = FreetService.StoreFreet

type freetService struct {
	weaver.Implements[FreetService]
	weaver.WithConfig[freetServiceOptions]
	userService     weaver.Ref[UserService]
	uniqueIdService weaver.Ref[UniqueIdService]
	// deploying the consumer alongside the publisher
	cascadeService weaver.Ref[CascadeService]
	mongoClient     *mongo.Client
	redisClient     *redis.Client
	amqChannel      *amqp.Channel
	amqConnection   *amqp.Connection
}

type freetServiceOptions struct {
	MongoDBAddr      string   `toml:"mongodb_address"`
	MongoDBPort      int      `toml:"mongodb_port"`
	RedisAddr        string   `toml:"redis_address"`
	RedisPort        int      `toml:"redis_port"`
	RabbitMQAddr     string   `toml:"rabbitmq_address"`
	RabbitMQPort     int      `toml:"rabbitmq_port"`
	RabbitMQUsername string   `toml:"rabbitmq_username"`
	RabbitMQPassword string   `toml:"rabbitmq_password"`
	Regions          []string `toml:"regions"`
	Region           string
}

func (f *freetService) Init(ctx context.Context) error {
	logger := f.Logger(ctx)

	region, err := utils.Region()
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	f.Config().Region = region
	if region == utils.DEFAULT_REGION {
		f.Config().Regions = []string{region}
	}

	f.mongoClient, err = storage.MongoDBClient(ctx, f.Config().MongoDBAddr, f.Config().MongoDBPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	f.redisClient = storage.RedisClient(f.Config().RedisAddr, f.Config().RedisPort)
	f.amqChannel, f.amqConnection, err = storage.RabbitMQClient(ctx, f.Config().RabbitMQUsername, f.Config().RabbitMQPassword, f.Config().RabbitMQAddr, f.Config().RabbitMQPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	logger.Info("freet service running!", "region", region, "regions", f.Config().Regions,
		"cascade_attached", f.cascadeService.Get() != nil,
		"mongodb_addr", f.Config().MongoDBAddr, "mongodb_port", f.Config().MongoDBPort,
		"redis_addr", f.Config().RedisAddr, "redis_port", f.Config().RedisPort,
		"rabbitmq_addr", f.Config().RabbitMQAddr, "rabbitmq_port", f.Config().RabbitMQPort,
	)
	return nil
}

func (f *freetService) collection() *mongo.Collection {
	return f.mongoClient.Database("freet").Collection("freet")
}

func (f *freetService) StoreFreet(ctx context.Context, reqID int64, authorID int64, text string) (model.Freet, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering StoreFreet", "req_id", reqID, "author_id", authorID)

	storeStartMs := time.Now().UnixMilli()

	author, err := f.userService.Get().GetUser(ctx, reqID, authorID)
	if err != nil {
		return model.Freet{}, err
	}
	freetID, err := f.uniqueIdService.Get().NextID(ctx, reqID)
	if err != nil {
		logger.Error("error generating freet id", "msg", err.Error())
		return model.Freet{}, err
	}
	freet := model.Freet{
		FreetID: freetID,
		ReqID:   reqID,
		Author: model.Creator{
			UserID:   author.UserID,
			Username: author.Username,
		},
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}

	r, err := f.collection().InsertOne(ctx, freet)
	if err != nil {
		logger.Error("error writing freet", "msg", err.Error())
		return model.Freet{}, err
	}
	logger.Debug("inserted freet", "objectid", r.InsertedID)

	freetJSON, err := json.Marshal(freet)
	if err != nil {
		logger.Error("error converting freet to json", "freet", freet)
		return model.Freet{}, err
	}
	f.redisClient.Set(ctx, strconv.FormatInt(freetID, 10), freetJSON, 0)

	trace.SpanFromContext(ctx).AddEvent("writing freet in mongodb",
		trace.WithAttributes(
			attribute.Int64("store_start_ms", storeStartMs),
			attribute.Int64("store_end_ms", time.Now().UnixMilli()),
		))
	ft_metrics.StoredFreets.Get(ft_metrics.RegionLabel{Region: f.Config().Region}).Inc()

	return freet, nil
}

func (f *freetService) ReadFreet(ctx context.Context, reqID int64, freetID int64) (model.Freet, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering ReadFreet", "req_id", reqID, "freet_id", freetID)

	result, err := f.redisClient.Get(ctx, strconv.FormatInt(freetID, 10)).Bytes()
	if err == nil {
		var freet model.Freet
		if err := json.Unmarshal(result, &freet); err != nil {
			logger.Error("error parsing freet from cache result", "msg", err.Error())
			return model.Freet{}, err
		}
		return freet, nil
	}
	if err != redis.Nil {
		logger.Error("error reading freet from cache", "msg", err.Error())
		return model.Freet{}, err
	}

	var freet model.Freet
	filter := bson.D{{Key: "freet_id", Value: freetID}}
	err = f.collection().FindOne(ctx, filter).Decode(&freet)
	if err == mongo.ErrNoDocuments {
		return model.Freet{}, ErrNotFound
	}
	if err != nil {
		logger.Error("error reading freet from mongodb", "msg", err.Error())
		return model.Freet{}, err
	}

	freetJSON, err := json.Marshal(freet)
	if err == nil {
		f.redisClient.Set(ctx, strconv.FormatInt(freetID, 10), freetJSON, 0)
	}
	return freet, nil
}

// ReadFreets resolves a batch of ids: cached freets come from redis in one
// MGET, the misses are backfilled from mongodb and written back to the cache.
func (f *freetService) ReadFreets(ctx context.Context, reqID int64, freetIDs []int64) ([]model.Freet, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering ReadFreets", "req_id", reqID, "#freet_ids", len(freetIDs))

	if len(freetIDs) == 0 {
		return []model.Freet{}, nil
	}

	uniqueFreetIDs := make(map[int64]bool)
	var keys []string
	for _, id := range freetIDs {
		if !uniqueFreetIDs[id] {
			uniqueFreetIDs[id] = true
			keys = append(keys, strconv.FormatInt(id, 10))
		}
	}

	result, err := f.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Error("error reading keys from redis", "msg", err.Error())
		return nil, err
	}
	var values []model.Freet
	for _, data := range result {
		str, ok := data.(string)
		if !ok {
			// cache miss, leave it for the mongodb backfill
			continue
		}
		var freet model.Freet
		if err := json.Unmarshal([]byte(str), &freet); err != nil {
			logger.Error("error parsing freet from redis result", "msg", err.Error())
			return nil, err
		}
		values = append(values, freet)
	}
	for _, freet := range values {
		delete(uniqueFreetIDs, freet.FreetID)
	}

	if len(uniqueFreetIDs) != 0 {
		var missing []int64
		for id := range uniqueFreetIDs {
			missing = append(missing, id)
		}
		filter := bson.D{{Key: "freet_id", Value: bson.M{"$in": missing}}}
		cur, err := f.collection().Find(ctx, filter)
		if err != nil {
			logger.Error("error reading freets from mongodb", "msg", err.Error())
			return []model.Freet{}, err
		}
		var newFreets []model.Freet
		if err := cur.All(ctx, &newFreets); err != nil {
			logger.Error("error parsing freets from mongodb result", "msg", err.Error())
			return []model.Freet{}, err
		}
		values = append(values, newFreets...)

		var wg sync.WaitGroup
		for _, newFreet := range newFreets {
			wg.Add(1)
			go func(newFreet model.Freet) {
				defer wg.Done()
				freetJSON, err := json.Marshal(newFreet)
				if err != nil {
					logger.Error("error converting freet to json", "freet", newFreet)
					return
				}
				f.redisClient.Set(ctx, strconv.FormatInt(newFreet.FreetID, 10), freetJSON, 0)
			}(newFreet)
		}
		wg.Wait()
	}
	return values, nil
}

func (f *freetService) ListFreets(ctx context.Context, reqID int64) ([]model.Freet, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering ListFreets", "req_id", reqID)
	return f.listFreets(ctx, bson.D{})
}

func (f *freetService) ListFreetsByAuthor(ctx context.Context, reqID int64, authorID int64) ([]model.Freet, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering ListFreetsByAuthor", "req_id", reqID, "author_id", authorID)
	return f.listFreets(ctx, bson.D{{Key: "author.user_id", Value: authorID}})
}

func (f *freetService) listFreets(ctx context.Context, filter bson.D) ([]model.Freet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cur, err := f.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var freets []model.Freet
	if err := cur.All(ctx, &freets); err != nil {
		return nil, err
	}
	return freets, nil
}

func (f *freetService) EditFreet(ctx context.Context, reqID int64, freetID int64, text string) (model.Freet, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering EditFreet", "req_id", reqID, "freet_id", freetID)

	filter := bson.D{{Key: "freet_id", Value: freetID}}
	update := bson.M{"$set": bson.M{"text": text, "modified": time.Now().UnixMilli()}}
	result, err := f.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		logger.Error("error updating freet in mongodb", "msg", err.Error())
		return model.Freet{}, err
	}
	if result.MatchedCount == 0 {
		return model.Freet{}, ErrNotFound
	}
	f.redisClient.Del(ctx, strconv.FormatInt(freetID, 10))
	return f.ReadFreet(ctx, reqID, freetID)
}

// DeleteFreet removes the document and queues the cascade that severs every
// aggregate still referencing it (likes, refreets, circle shares). The
// cascade is fire-and-forget: a publish failure is logged, not surfaced.
func (f *freetService) DeleteFreet(ctx context.Context, reqID int64, freetID int64) (bool, error) {
	logger := f.Logger(ctx)
	logger.Debug("entering DeleteFreet", "req_id", reqID, "freet_id", freetID)

	filter := bson.D{{Key: "freet_id", Value: freetID}}
	result, err := f.collection().DeleteOne(ctx, filter)
	if err != nil {
		logger.Error("error deleting freet from mongodb", "msg", err.Error())
		return false, err
	}
	if result.DeletedCount == 0 {
		return false, nil
	}
	f.redisClient.Del(ctx, strconv.FormatInt(freetID, 10))
	ft_metrics.DeletedFreets.Get(ft_metrics.RegionLabel{Region: f.Config().Region}).Inc()

	if err := f.publishCascade(ctx, reqID, freetID); err != nil {
		logger.Error("error queueing cascade delete", "msg", err.Error())
	}
	return true, nil
}

// buildCascadeMessage assembles the queue payload for one deleted freet,
// carrying the producer span context so the consumer can resume the trace.
func buildCascadeMessage(reqID int64, freetID int64, spanContext trace.SpanContext, now time.Time) model.Message {
	return model.Message{
		ReqID:     reqID,
		FreetID:   freetID,
		Timestamp: now.UnixMilli(),
		// tracing
		SpanContext: ft_trace.BuildSpanContext(spanContext),
		// evaluation metrics
		CascadeSendTs: now.UnixMilli(),
	}
}

// cascadeRoutingKeys yields one topic routing key per region so every
// region's consumer sees the delete.
func cascadeRoutingKeys(regions []string) []string {
	keys := make([]string, 0, len(regions))
	for _, region := range regions {
		keys = append(keys, fmt.Sprintf("cascade-delete-%s", region))
	}
	return keys
}

func (f *freetService) publishCascade(ctx context.Context, reqID int64, freetID int64) error {
	logger := f.Logger(ctx)

	err := f.amqChannel.ExchangeDeclare("cascade-delete", "topic", false, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring exchange for rabbitmq", "msg", err.Error())
		return err
	}

	msg := buildCascadeMessage(reqID, freetID, trace.SpanContextFromContext(ctx), time.Now())
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		logger.Error("error converting rabbitmq message to json", "msg", err.Error())
		return err
	}

	amqMsg := amqp.Publishing{
		ContentType: "application/json",
		Body:        msgJSON,
	}
	for _, routingKey := range cascadeRoutingKeys(f.Config().Regions) {
		err := f.amqChannel.PublishWithContext(ctx, "cascade-delete", routingKey, false, false, amqMsg)
		if err != nil {
			logger.Error("error publishing cascade message", "routing_key", routingKey, "msg", err.Error())
			return err
		}
	}
	return nil
}
