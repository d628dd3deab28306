package entity

// SlotPatch is a field-level slot change; nil fields are untouched.
type SlotPatch struct {
	PetName  *string     `json:"petName,omitempty"`
	PhotoURL *string     `json:"photoUrl,omitempty"`
	Position *Position   `json:"position,omitempty"`
	Halo     *bool       `json:"halo,omitempty"`
	Status   *SlotStatus `json:"status,omitempty"`
	AIReason *string     `json:"aiReason,omitempty"`
}

func (p SlotPatch) Empty() bool {
	return p.PetName == nil && p.PhotoURL == nil && p.Position == nil &&
		p.Halo == nil && p.Status == nil && p.AIReason == nil
}

// Draftable reports whether the patch only touches customer-editable fields.
func (p SlotPatch) Draftable() bool {
	return p.PhotoURL == nil && p.Status == nil && p.AIReason == nil
}

func (p SlotPatch) Validate() error {
	if p.Position != nil && *p.Position != "" && !p.Position.Valid() {
		return ErrUnknownPosition
	}
	return nil
}

// Apply returns s with the patch's set fields written over it.
func (p SlotPatch) Apply(s EmbroiderySlot) EmbroiderySlot {
	if p.PetName != nil {
		s.PetName = *p.PetName
	}
	if p.PhotoURL != nil {
		s.PhotoURL = *p.PhotoURL
	}
	if p.Position != nil {
		s.Position = *p.Position
	}
	if p.Halo != nil {
		s.Halo = *p.Halo
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.AIReason != nil {
		s.AIReason = *p.AIReason
	}
	return s
}

// Merge overlays next onto p; fields set in next win.
func (p SlotPatch) Merge(next SlotPatch) SlotPatch {
	if next.PetName != nil {
		p.PetName = next.PetName
	}
	if next.PhotoURL != nil {
		p.PhotoURL = next.PhotoURL
	}
	if next.Position != nil {
		p.Position = next.Position
	}
	if next.Halo != nil {
		p.Halo = next.Halo
	}
	if next.Status != nil {
		p.Status = next.Status
	}
	if next.AIReason != nil {
		p.AIReason = next.AIReason
	}
	return p
}

// ItemPatch is a single-row item write. SetSleeve with a nil Sleeve removes it.
type ItemPatch struct {
	SetSleeve      bool
	Sleeve         *SleeveConfig
	DesignImageURL *string
	MachineFileURL *string
	TechSheetURL   *string
	DesignStatus   *DesignStatus
	DesignFeedback *string
}

func (p ItemPatch) Empty() bool {
	return !p.SetSleeve && p.DesignImageURL == nil && p.MachineFileURL == nil &&
		p.TechSheetURL == nil && p.DesignStatus == nil && p.DesignFeedback == nil
}

func (p ItemPatch) Apply(it OrderItem) OrderItem {
	if p.SetSleeve {
		if p.Sleeve == nil {
			it.Sleeve = nil
		} else {
			s := *p.Sleeve
			it.Sleeve = &s
		}
	}
	if p.DesignImageURL != nil {
		it.DesignImageURL = *p.DesignImageURL
	}
	if p.MachineFileURL != nil {
		it.MachineFileURL = *p.MachineFileURL
	}
	if p.TechSheetURL != nil {
		it.TechSheetURL = *p.TechSheetURL
	}
	if p.DesignStatus != nil {
		it.DesignStatus = *p.DesignStatus
	}
	if p.DesignFeedback != nil {
		it.DesignFeedback = *p.DesignFeedback
	}
	return it
}

// OrderPatch is a single-row order write. Status and assignment travel
// together so they land atomically.
type OrderPatch struct {
	Status          *OrderStatus
	DesignerID      *string
	EmbroidererID   *string
	DesignImageURL  *string
	MachineFileURL  *string
	TechSheetURL    *string
	ClientFeedback  *string
	ProductionIssue *string
	EvidencePhoto1  *string
	EvidencePhoto2  *string
}

func (p OrderPatch) Empty() bool {
	return p.Status == nil && p.DesignerID == nil && p.EmbroidererID == nil &&
		p.DesignImageURL == nil && p.MachineFileURL == nil && p.TechSheetURL == nil &&
		p.ClientFeedback == nil && p.ProductionIssue == nil &&
		p.EvidencePhoto1 == nil && p.EvidencePhoto2 == nil
}

func (p OrderPatch) Apply(o Order) Order {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	set(&o.DesignerID, p.DesignerID)
	set(&o.EmbroidererID, p.EmbroidererID)
	set(&o.DesignImageURL, p.DesignImageURL)
	set(&o.MachineFileURL, p.MachineFileURL)
	set(&o.TechSheetURL, p.TechSheetURL)
	set(&o.ClientFeedback, p.ClientFeedback)
	set(&o.ProductionIssue, p.ProductionIssue)
	set(&o.EvidencePhoto1, p.EvidencePhoto1)
	set(&o.EvidencePhoto2, p.EvidencePhoto2)
	return o
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
