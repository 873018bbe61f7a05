package queue

import (
	"context"
	"encoding/json"
	"time"

	"go-availability/core/config"
	"go-availability/core/constants"
	"go-availability/core/logger"

	"github.com/hibiken/asynq"
)

// Enqueuer is what services depend on to schedule background work.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Client struct {
	client *asynq.Client
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(redisOpt(cfg))}
}

// Enqueue JSON-encodes payload into a task of the given type.
func (c *Client) Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	opts = append([]asynq.Option{asynq.Queue(constants.QueueDefault), asynq.MaxRetry(3), asynq.Timeout(2 * time.Minute)}, opts...)
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...)
	if err != nil {
		logger.Error("Queue:Enqueue", err, "type", taskType)
		return nil, err
	}

	logger.Info("Queue:Enqueue:Success", "type", taskType, "task_id", info.ID)
	return info, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// NewServer builds the worker side. Handlers are registered on the returned
// mux by the caller.
func NewServer(redisCfg config.RedisConfig, cfg config.QueueConfig) (*asynq.Server, *asynq.ServeMux) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	srv := asynq.NewServer(redisOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{constants.QueueDefault: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("Queue:Task:Failed", err, "type", task.Type())
		}),
	})
	return srv, asynq.NewServeMux()
}
