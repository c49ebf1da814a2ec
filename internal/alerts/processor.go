package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Processor consumes notification tasks. Handlers only log for now; a mail
// or push sender plugs in behind them.
type Processor struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    zerolog.Logger
}

func NewProcessor(opt asynq.RedisConnOpt, log zerolog.Logger) *Processor {
	p := &Processor{log: log}
	p.mux = asynq.NewServeMux()
	for _, t := range []string{
		TaskOrderRequested, TaskOrderAccepted, TaskOrderRejected, TaskOrderPaid,
		TaskOrderDelivered, TaskOrderCompleted, TaskOrderCancelled,
	} {
		p.mux.HandleFunc(t, p.handleOrderEvent)
	}
	p.mux.HandleFunc(TaskMessageNew, p.handleNewMessage)

	p.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueOrders:   10,
			QueueMessages: 5,
		},
		Logger:   asynqLogger{log: log},
		LogLevel: asynq.WarnLevel,
	})
	return p
}

// Start runs the worker in the background.
func (p *Processor) Start() error {
	if err := p.server.Start(p.mux); err != nil {
		return fmt.Errorf("start alert processor: %w", err)
	}
	p.log.Info().Msg("alert processor started")
	return nil
}

// Shutdown waits for in-flight tasks and stops the worker.
func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

// Handlers below parse payloads and log the notification.

func (p *Processor) handleOrderEvent(_ context.Context, t *asynq.Task) error {
	var ev OrderEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	p.log.Info().
		Str("task", t.Type()).
		Str("order_id", ev.OrderID).
		Str("to", ev.Recipient).
		Str("by", ev.ActorID).
		Str("gig", ev.GigTitle).
		Msg("[notify] order update")
	return nil
}

func (p *Processor) handleNewMessage(_ context.Context, t *asynq.Task) error {
	var ev MessageEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	p.log.Info().
		Str("message_id", ev.MessageID).
		Str("from", ev.SenderID).
		Str("to", ev.Recipient).
		Msg("[notify] new message")
	return nil
}

// asynqLogger routes asynq's own logging into zerolog.
type asynqLogger struct{ log zerolog.Logger }

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
