package order

import "time"

// Version orders two snapshots of the same order when no explicit version
// counter exists. Lifecycle progress dominates; updated_at breaks ties.
type Version struct {
	Rank      int
	UpdatedAt time.Time
}

func phaseRank(p Phase) int {
	switch p {
	case PhaseRequested:
		return 0
	case PhaseAwaitingPayment:
		return 1
	case PhaseInProgress:
		return 2
	case PhaseDelivered:
		return 3
	case PhaseCompleted, PhaseRejected, PhaseCancelled:
		return 4
	}
	return -1
}

// Version returns the logical version of o.
func (o Order) Version() Version {
	return Version{Rank: phaseRank(o.Phase()), UpdatedAt: o.UpdatedAt}
}

// Compare returns -1, 0 or +1 as v is older than, equal to or newer than w.
func (v Version) Compare(w Version) int {
	switch {
	case v.Rank < w.Rank:
		return -1
	case v.Rank > w.Rank:
		return 1
	}
	return v.UpdatedAt.Compare(w.UpdatedAt)
}
