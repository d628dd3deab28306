package entity

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingUpload, StatusAnalyzingImage, StatusActionRequired,
		StatusWaitingForDesign, StatusDesignReview, StatusDesignRejected,
		StatusReadyToEmbroider, StatusInProgress, StatusOnHold,
		StatusReadyForDispatch, StatusDispatched:
		return true
	}
	return false
}

// Editable reports whether customers may still change slots and sleeves.
func (s OrderStatus) Editable() bool {
	switch s {
	case StatusPendingUpload, StatusActionRequired, StatusAnalyzingImage, StatusDesignRejected:
		return true
	}
	return false
}

// AutoRecompute reports whether slot mutations re-derive the status. Outside
// the photo-intake phase only explicit role actions move the order.
func (s OrderStatus) AutoRecompute() bool {
	switch s {
	case StatusPendingUpload, StatusActionRequired, StatusAnalyzingImage, StatusWaitingForDesign:
		return true
	}
	return false
}

// OpenLoad reports whether an assigned order still counts against staff load.
func (s OrderStatus) OpenLoad() bool {
	return s != StatusDispatched && s != StatusDesignRejected
}

// explicit role-driven transitions; slot recompute moves are handled separately
var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingUpload:    {StatusWaitingForDesign},
	StatusAnalyzingImage:   {StatusWaitingForDesign},
	StatusActionRequired:   {StatusWaitingForDesign},
	StatusDesignRejected:   {StatusWaitingForDesign, StatusDesignReview},
	StatusWaitingForDesign: {StatusDesignReview},
	StatusDesignReview:     {StatusDesignReview, StatusReadyToEmbroider, StatusDesignRejected},
	StatusReadyToEmbroider: {StatusInProgress},
	StatusInProgress:       {StatusReadyForDispatch, StatusOnHold},
	StatusOnHold:           {StatusInProgress},
	StatusReadyForDispatch: {StatusDispatched},
}

// CanTransition reports whether an explicit action may move from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RecomputeStatus derives the intake-phase status from every photo item's
// slots. An in-flight analysis wins over an earlier rejection so the order
// visibly waits on the assessment.
func RecomputeStatus(items []OrderItem) OrderStatus {
	var analyzing, rejected, incomplete bool
	for _, it := range items {
		if it.IsSleeveAddon() {
			continue
		}
		for _, s := range it.Slots {
			switch s.Status {
			case SlotAnalyzing:
				analyzing = true
			case SlotRejected:
				rejected = true
			case SlotApproved:
			default:
				incomplete = true
			}
		}
	}
	switch {
	case analyzing:
		return StatusAnalyzingImage
	case rejected:
		return StatusActionRequired
	case incomplete:
		return StatusPendingUpload
	}
	return StatusWaitingForDesign
}

// ReadyToFinalize reports whether every photo slot is approved, still being
// analyzed, or at least carries a photo.
func ReadyToFinalize(items []OrderItem) bool {
	for _, it := range items {
		if it.IsSleeveAddon() {
			continue
		}
		for _, s := range it.Slots {
			if s.Status == SlotApproved || s.Status == SlotAnalyzing || s.PhotoURL != "" {
				continue
			}
			return false
		}
	}
	return true
}
