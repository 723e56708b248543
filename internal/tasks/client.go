package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"gatecheck/internal/models"
	"gatecheck/internal/utils/logger"
)

// TaskClient enqueues background tasks and holds a raw Redis connection for
// health checks and rate limiting.
type TaskClient struct {
	client      *asynq.Client
	redisClient *redis.Client
	logger      *logger.Logger
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	})

	return &TaskClient{
		client:      asynq.NewClient(redisOpt),
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// Redis exposes the raw connection for health checks and the audit flood
// limiter.
func (c *TaskClient) Redis() *redis.Client {
	return c.redisClient
}

// Ping verifies the Redis connection is alive.
func (c *TaskClient) Ping(ctx context.Context) error {
	return c.redisClient.Ping(ctx).Err()
}

// EnqueueAuditEntry queues one audit append. The caller treats failures as
// logged-and-dropped; the decision that produced the entry has already been
// returned.
func (c *TaskClient) EnqueueAuditEntry(ctx context.Context, entry models.AuditLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	task := asynq.NewTask(TaskTypeAuditRecord, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutDefault),
	)

	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying asynq client and Redis connection.
func (c *TaskClient) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.redisClient.Close()
}
