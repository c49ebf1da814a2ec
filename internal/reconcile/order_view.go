package reconcile

import (
	"context"
	"sync"

	"github.com/sudo-init-do/gighub/internal/order"
)

// OrderView caches the snapshot of a single order.
//
// A read response is applied only if it was issued after the last applied
// response and its logical version is not older than the cached one. Once a
// mutation response has landed, reads must be strictly newer to replace it.
// Mutation responses are always applied.
type OrderView struct {
	mu       sync.Mutex
	seq      Sequencer
	current  *order.Order
	pinned   bool
	onChange func(order.Order)
}

// NewOrderView returns an empty view. onChange, if set, runs after each
// applied snapshot, outside the view's lock.
func NewOrderView(onChange func(order.Order)) *OrderView {
	return &OrderView{onChange: onChange}
}

// Snapshot returns the cached order, if any.
func (v *OrderView) Snapshot() (order.Order, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return order.Order{}, false
	}
	return *v.current, true
}

// BeginRead issues a sequence number for a read about to be sent.
func (v *OrderView) BeginRead() uint64 { return v.seq.Next() }

// BeginMutation issues a sequence number for a mutating call about to be sent.
func (v *OrderView) BeginMutation() uint64 { return v.seq.Next() }

// ApplyRead offers a read response; it reports whether the view changed.
func (v *OrderView) ApplyRead(seq uint64, o order.Order) bool {
	v.mu.Lock()
	if v.current != nil {
		cmp := o.Version().Compare(v.current.Version())
		if cmp < 0 || (cmp == 0 && v.pinned) {
			v.mu.Unlock()
			return false
		}
	}
	if !v.seq.admit(seq) {
		v.mu.Unlock()
		return false
	}
	cp := o
	v.current = &cp
	v.pinned = false
	v.mu.Unlock()
	v.notify(o)
	return true
}

// ApplyMutation installs the response of a mutating call unconditionally.
func (v *OrderView) ApplyMutation(seq uint64, o order.Order) {
	v.mu.Lock()
	v.seq.force(seq)
	cp := o
	v.current = &cp
	v.pinned = true
	v.mu.Unlock()
	v.notify(o)
}

func (v *OrderView) notify(o order.Order) {
	if v.onChange != nil {
		v.onChange(o)
	}
}

// Refresh performs one sequenced read through fetch.
func (v *OrderView) Refresh(ctx context.Context, fetch func(context.Context) (*order.Order, error)) error {
	seq := v.BeginRead()
	o, err := fetch(ctx)
	if err != nil {
		return err
	}
	v.ApplyRead(seq, *o)
	return nil
}
