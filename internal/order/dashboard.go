package order

// View names a dashboard tab.
type View string

const (
	ViewAll       View = "all"
	ViewPending   View = "pending"
	ViewActive    View = "active"
	ViewCompleted View = "completed"
)

// Matches reports whether o belongs on the given dashboard tab.
func (v View) Matches(o Order) bool {
	switch v {
	case ViewPending:
		return o.Status == StatusRequested
	case ViewActive:
		return o.Status == StatusPending && o.Paid()
	case ViewCompleted:
		return o.Status == StatusCompleted
	}
	return true
}

// Filter returns the orders shown on tab v, preserving order.
func Filter(orders []Order, v View) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if v.Matches(o) {
			out = append(out, o)
		}
	}
	return out
}

// Summary holds the dashboard counters.
type Summary struct {
	Requested int   `json:"requested"`
	Active    int   `json:"active"`
	Completed int   `json:"completed"`
	TotalPaid int64 `json:"total_paid"`
}

// Summarize computes dashboard counters. Amounts are the prices fixed on the
// orders; nothing is recalculated.
func Summarize(orders []Order) Summary {
	var s Summary
	for _, o := range orders {
		switch {
		case ViewPending.Matches(o):
			s.Requested++
		case ViewActive.Matches(o):
			s.Active++
		case ViewCompleted.Matches(o):
			s.Completed++
		}
		if o.Paid() {
			s.TotalPaid += o.Price
		}
	}
	return s
}
