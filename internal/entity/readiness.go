package entity

// Readiness is an item's photo readiness as seen by the design phase.
type Readiness int

const (
	ReadinessIncomplete Readiness = iota
	ReadinessAnalyzing
	ReadinessRejected
	ReadinessReady
)

func (r Readiness) String() string {
	switch r {
	case ReadinessAnalyzing:
		return "any-analyzing"
	case ReadinessRejected:
		return "any-rejected"
	case ReadinessReady:
		return "all-approved"
	}
	return "incomplete"
}

func (r Readiness) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ItemReadiness classifies one item's slots. A rejected slot outranks an
// analyzing one here; order-level recompute uses the opposite order.
func ItemReadiness(slots []EmbroiderySlot) Readiness {
	var analyzing, incomplete bool
	for _, s := range slots {
		switch s.Status {
		case SlotRejected:
			return ReadinessRejected
		case SlotAnalyzing:
			analyzing = true
		case SlotApproved:
		default:
			incomplete = true
		}
	}
	switch {
	case analyzing:
		return ReadinessAnalyzing
	case incomplete:
		return ReadinessIncomplete
	}
	return ReadinessReady
}

// Readiness returns the item's classification; sleeve add-ons are always ready.
func (i OrderItem) Readiness() Readiness {
	if i.IsSleeveAddon() {
		return ReadinessReady
	}
	return ItemReadiness(i.Slots)
}

// ItemsReadiness maps every item id to its readiness.
func (o *Order) ItemsReadiness() map[string]Readiness {
	out := make(map[string]Readiness, len(o.Items))
	for _, it := range o.Items {
		out[it.ID] = it.Readiness()
	}
	return out
}
