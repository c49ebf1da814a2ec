package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	tasks  []*asynq.Task
	err    error
	closed bool
}

func (r *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type()}, nil
}

func (r *recordingClient) Close() error { r.closed = true; return nil }

func TestOrderEventEnqueued(t *testing.T) {
	rc := &recordingClient{}
	n := &AsynqNotifier{client: rc, log: zerolog.Nop()}

	require.NoError(t, n.OrderEvent(context.Background(), TaskOrderAccepted, OrderEvent{OrderID: "o-1", Recipient: "buyer"}))
	require.Len(t, rc.tasks, 1)
	assert.Equal(t, TaskOrderAccepted, rc.tasks[0].Type())

	var ev OrderEvent
	require.NoError(t, json.Unmarshal(rc.tasks[0].Payload(), &ev))
	assert.Equal(t, "o-1", ev.OrderID)
	assert.False(t, ev.SentAt.IsZero())

	require.NoError(t, n.Close())
	assert.True(t, rc.closed)
}

func TestNewMessageTruncatesPreview(t *testing.T) {
	rc := &recordingClient{}
	n := &AsynqNotifier{client: rc, log: zerolog.Nop()}

	require.NoError(t, n.NewMessage(context.Background(), MessageEvent{MessageID: "m-1", Preview: strings.Repeat("é", 500)}))
	var ev MessageEvent
	require.NoError(t, json.Unmarshal(rc.tasks[0].Payload(), &ev))
	assert.Len(t, []rune(ev.Preview), previewLen)
}

func TestEnqueueErrorWrapped(t *testing.T) {
	boom := errors.New("redis down")
	n := &AsynqNotifier{client: &recordingClient{err: boom}, log: zerolog.Nop()}
	err := n.OrderEvent(context.Background(), TaskOrderPaid, OrderEvent{})
	assert.ErrorIs(t, err, boom)
}

func TestProcessorHandlers(t *testing.T) {
	var buf bytes.Buffer
	p := &Processor{log: zerolog.New(&buf)}

	b, _ := json.Marshal(OrderEvent{OrderID: "o-9", Recipient: "seller-1"})
	require.NoError(t, p.handleOrderEvent(context.Background(), asynq.NewTask(TaskOrderPaid, b)))
	assert.Contains(t, buf.String(), `"order_id":"o-9"`)

	b, _ = json.Marshal(MessageEvent{MessageID: "m-1", Recipient: "u-2"})
	require.NoError(t, p.handleNewMessage(context.Background(), asynq.NewTask(TaskMessageNew, b)))
	assert.Contains(t, buf.String(), `"message_id":"m-1"`)

	err := p.handleOrderEvent(context.Background(), asynq.NewTask(TaskOrderPaid, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = NopNotifier{}
	assert.NoError(t, n.OrderEvent(context.Background(), TaskOrderCancelled, OrderEvent{}))
	assert.NoError(t, n.NewMessage(context.Background(), MessageEvent{}))
}
