package reconcile

import (
	"context"
	"sync"

	"github.com/sudo-init-do/gighub/internal/order"
)

// OrderList caches a dashboard listing. Whole-list reads follow the sequence
// rule; within an admitted read, an order whose cached copy came from a
// mutation survives unless the read carries a strictly newer version.
type OrderList struct {
	mu     sync.Mutex
	seq    Sequencer
	orders []order.Order
	loaded bool
	pinned map[string]bool
}

func NewOrderList() *OrderList {
	return &OrderList{pinned: map[string]bool{}}
}

// Snapshot returns a copy of the listing and whether any read has landed.
func (l *OrderList) Snapshot() ([]order.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]order.Order, len(l.orders))
	copy(out, l.orders)
	return out, l.loaded
}

func (l *OrderList) BeginRead() uint64     { return l.seq.Next() }
func (l *OrderList) BeginMutation() uint64 { return l.seq.Next() }

// ApplyRead offers a full listing; it reports whether it was admitted.
func (l *OrderList) ApplyRead(seq uint64, orders []order.Order) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.seq.admit(seq) {
		return false
	}
	cached := make(map[string]order.Order, len(l.orders))
	for _, o := range l.orders {
		cached[o.ID] = o
	}
	next := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if prev, ok := cached[o.ID]; ok {
			cmp := o.Version().Compare(prev.Version())
			if cmp < 0 || (cmp == 0 && l.pinned[o.ID]) {
				next = append(next, prev)
				continue
			}
		}
		delete(l.pinned, o.ID)
		next = append(next, o)
	}
	l.orders = next
	l.loaded = true
	return true
}

// ApplyMutation replaces (or adds) one order from a mutation response.
func (l *OrderList) ApplyMutation(seq uint64, o order.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq.force(seq)
	l.pinned[o.ID] = true
	for i := range l.orders {
		if l.orders[i].ID == o.ID {
			l.orders[i] = o
			return
		}
	}
	l.orders = append([]order.Order{o}, l.orders...)
}

// Refresh performs one sequenced listing read through fetch.
func (l *OrderList) Refresh(ctx context.Context, fetch func(context.Context) ([]order.Order, error)) error {
	seq := l.BeginRead()
	orders, err := fetch(ctx)
	if err != nil {
		return err
	}
	l.ApplyRead(seq, orders)
	return nil
}
