package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/sudo-init-do/gighub/internal/models"
)

// ThreadInterval is the chat refresh cadence.
const ThreadInterval = 2 * time.Second

// Thread caches one conversation. Reads replace the message list under the
// sequence rule; a sent message is appended immediately as a mutation.
type Thread struct {
	mu       sync.Mutex
	seq      Sequencer
	messages []models.Message
	onChange func([]models.Message)
}

// NewThread returns an empty thread cache.
func NewThread(onChange func([]models.Message)) *Thread {
	return &Thread{onChange: onChange}
}

func (t *Thread) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Thread) BeginRead() uint64 { return t.seq.Next() }
func (t *Thread) BeginSend() uint64 { return t.seq.Next() }

// ApplyRead replaces the thread with a read response issued at seq.
func (t *Thread) ApplyRead(seq uint64, msgs []models.Message) bool {
	t.mu.Lock()
	if !t.seq.admit(seq) {
		t.mu.Unlock()
		return false
	}
	t.messages = append([]models.Message(nil), msgs...)
	out := t.copyLocked()
	t.mu.Unlock()
	t.notify(out)
	return true
}

// ApplySent appends the server's copy of a message we just sent.
func (t *Thread) ApplySent(seq uint64, m models.Message) {
	t.mu.Lock()
	t.seq.force(seq)
	for _, existing := range t.messages {
		if existing.ID == m.ID {
			t.mu.Unlock()
			return
		}
	}
	t.messages = append(t.messages, m)
	out := t.copyLocked()
	t.mu.Unlock()
	t.notify(out)
}

func (t *Thread) copyLocked() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Thread) notify(msgs []models.Message) {
	if t.onChange != nil {
		t.onChange(msgs)
	}
}

// Refresh performs one sequenced read through fetch.
func (t *Thread) Refresh(ctx context.Context, fetch func(context.Context) ([]models.Message, error)) error {
	seq := t.BeginRead()
	msgs, err := fetch(ctx)
	if err != nil {
		return err
	}
	t.ApplyRead(seq, msgs)
	return nil
}
