package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Notifier fans out lifecycle events. Delivery is best effort: callers log
// failures and carry on.
type Notifier interface {
	OrderEvent(ctx context.Context, task string, ev OrderEvent) error
	NewMessage(ctx context.Context, ev MessageEvent) error
}

// enqueuer is the part of *asynq.Client the notifier needs.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqNotifier enqueues events on Redis for the Processor.
type AsynqNotifier struct {
	client enqueuer
	log    zerolog.Logger
}

func NewAsynqNotifier(opt asynq.RedisConnOpt, log zerolog.Logger) *AsynqNotifier {
	return &AsynqNotifier{client: asynq.NewClient(opt), log: log}
}

// previewLen caps message text copied into a task payload.
const previewLen = 140

func (n *AsynqNotifier) OrderEvent(ctx context.Context, task string, ev OrderEvent) error {
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	return n.enqueue(ctx, task, ev, QueueOrders)
}

func (n *AsynqNotifier) NewMessage(ctx context.Context, ev MessageEvent) error {
	if r := []rune(ev.Preview); len(r) > previewLen {
		ev.Preview = string(r[:previewLen])
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	return n.enqueue(ctx, TaskMessageNew, ev, QueueMessages)
}

func (n *AsynqNotifier) enqueue(ctx context.Context, taskType string, payload any, queue string) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", taskType, err)
	}
	info, err := n.client.EnqueueContext(ctx, asynq.NewTask(taskType, b), asynq.Queue(queue), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	n.log.Debug().Str("task", taskType).Str("id", info.ID).Msg("notification enqueued")
	return nil
}

// Close releases the Redis connection.
func (n *AsynqNotifier) Close() error { return n.client.Close() }

// NopNotifier drops every event. Used when Redis is not configured.
type NopNotifier struct{}

func (NopNotifier) OrderEvent(context.Context, string, OrderEvent) error { return nil }
func (NopNotifier) NewMessage(context.Context, MessageEvent) error       { return nil }
