package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ft_metrics "freet/pkg/metrics"
	"freet/pkg/model"
	"freet/pkg/storage"
	ft_trace "freet/pkg/trace"
	"freet/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CascadeService interface {
	// CascadeService does not expose any rpc methods; it consumes the
	// cascade-delete queue
}

type cascadeServiceOptions struct {
	RabbitMQAddr     string `toml:"rabbitmq_address"`
	RabbitMQPort     int    `toml:"rabbitmq_port"`
	RabbitMQUsername string `toml:"rabbitmq_username"`
	RabbitMQPassword string `toml:"rabbitmq_password"`
	NumWorkers       int    `toml:"num_workers"`
	Region           string `toml:"region"`
}

type cascadeService struct {
	weaver.Implements[CascadeService]
	weaver.WithConfig[cascadeServiceOptions]
	likeService    weaver.Ref[LikeService]
	refreetService weaver.Ref[RefreetService]
	circleService  weaver.Ref[CircleService]
}

func (c *cascadeService) Init(ctx context.Context) error {
	logger := c.Logger(ctx)
	logger.Debug("initializing cascade service...")

	region, err := utils.Region()
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	c.Config().Region = region

	logger.Info("initializing workers for cascade service", "region", region, "nworkers", c.Config().NumWorkers, "rabbitmq_addr", c.Config().RabbitMQAddr, "rabbitmq_port", c.Config().RabbitMQPort)
	// workers consume until the process stops; Init must not block on them
	for i := 1; i <= c.Config().NumWorkers; i++ {
		go func() {
			if err := c.workerThread(ctx); err != nil {
				logger.Error("error in worker thread", "msg", err.Error())
			}
		}()
	}
	return nil
}

// cascadeStep is one severing action run for a deleted freet. Steps are
// idempotent, so a redelivered message converges to the same end state.
type cascadeStep struct {
	name string
	run  func(ctx context.Context, reqID int64, freetID int64) error
}

func (c *cascadeService) cascadeSteps() []cascadeStep {
	return []cascadeStep{
		{"delete like aggregate", func(ctx context.Context, reqID int64, freetID int64) error {
			_, err := c.likeService.Get().DeleteLike(ctx, reqID, freetID)
			return err
		}},
		{"delete refreet aggregate", func(ctx context.Context, reqID int64, freetID int64) error {
			_, err := c.refreetService.Get().DeleteRefreet(ctx, reqID, freetID)
			return err
		}},
		{"remove freet from circles", func(ctx context.Context, reqID int64, freetID int64) error {
			return c.circleService.Get().RemoveFreetFromAll(ctx, reqID, freetID)
		}},
	}
}

// runCascade executes every step regardless of earlier failures: a failed
// sub-step is logged and counted, never aborting the rest. Returns the number
// of failed steps.
func runCascade(ctx context.Context, logger *slog.Logger, region string, msg model.Message, steps []cascadeStep) int {
	failed := 0
	for _, step := range steps {
		if err := step.run(ctx, msg.ReqID, msg.FreetID); err != nil {
			logger.Error("cascade step failed", "step", step.name, "freetid", msg.FreetID, "msg", err.Error())
			ft_metrics.Inconsistencies.Get(ft_metrics.RegionLabel{Region: region}).Inc()
			failed++
		}
	}
	return failed
}

func (c *cascadeService) onReceivedWorker(ctx context.Context, body []byte) error {
	logger := c.Logger(ctx)

	var msg model.Message
	err := json.Unmarshal(body, &msg)
	if err != nil {
		logger.Error("error parsing json message", "msg", err.Error())
		return err
	}

	logger.Debug("received rabbitmq message", "freetid", msg.FreetID)

	// resume the trace started by the publish on the producer side
	if producerCtx, err := ft_trace.ParseSpanContext(msg.SpanContext); err == nil && producerCtx.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, producerCtx)
	}
	trace.SpanFromContext(ctx).AddEvent("cascading freet delete",
		trace.WithAttributes(attribute.Int64("freet_id", msg.FreetID)))

	runCascade(ctx, logger, c.Config().Region, msg, c.cascadeSteps())

	region := ft_metrics.RegionLabel{Region: c.Config().Region}
	ft_metrics.CascadeDurationMs.Get(region).Put(float64(time.Now().UnixMilli() - msg.CascadeSendTs))
	return nil
}

func (c *cascadeService) workerThread(ctx context.Context) error {
	logger := c.Logger(ctx)

	ch, conn, err := storage.RabbitMQClient(ctx, c.Config().RabbitMQUsername, c.Config().RabbitMQPassword, c.Config().RabbitMQAddr, c.Config().RabbitMQPort)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	defer conn.Close()
	defer ch.Close()

	err = ch.ExchangeDeclare("cascade-delete", "topic", false, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring exchange for rabbitmq", "msg", err.Error())
		return err
	}

	routingKey := fmt.Sprintf("cascade-delete-%s", c.Config().Region)
	_, err = ch.QueueDeclare(routingKey, true, false, false, false, nil)
	if err != nil {
		logger.Error("error declaring queue for rabbitmq", "msg", err.Error())
		return err
	}

	err = ch.QueueBind(routingKey, routingKey, "cascade-delete", false, nil)
	if err != nil {
		logger.Error("error binding queue for rabbitmq", "msg", err.Error())
		return err
	}

	msgs, err := ch.Consume(routingKey, "", true, false, false, false, nil)
	if err != nil {
		logger.Error("error consuming queue", "msg", err.Error())
		return err
	}

	for msg := range msgs {
		err = c.onReceivedWorker(ctx, msg.Body)
		if err != nil {
			logger.Warn("error in worker thread", "msg", err.Error())
		}
	}
	return nil
}
