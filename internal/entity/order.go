package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPendingUpload    OrderStatus = "PENDING_UPLOAD"
	StatusAnalyzingImage   OrderStatus = "ANALYZING_IMAGE"
	StatusActionRequired   OrderStatus = "ACTION_REQUIRED"
	StatusWaitingForDesign OrderStatus = "WAITING_FOR_DESIGN"
	StatusDesignReview     OrderStatus = "DESIGN_REVIEW"
	StatusDesignRejected   OrderStatus = "DESIGN_REJECTED"
	StatusReadyToEmbroider OrderStatus = "READY_TO_EMBROIDER"
	StatusInProgress       OrderStatus = "IN_PROGRESS"
	StatusOnHold           OrderStatus = "ON_HOLD"
	StatusReadyForDispatch OrderStatus = "READY_FOR_DISPATCH"
	StatusDispatched       OrderStatus = "DISPATCHED"
)

type SlotStatus string

const (
	SlotEmpty     SlotStatus = "EMPTY"
	SlotAnalyzing SlotStatus = "ANALYZING"
	SlotApproved  SlotStatus = "APPROVED"
	SlotRejected  SlotStatus = "REJECTED"
)

type DesignStatus string

const (
	DesignPending  DesignStatus = "PENDING"
	DesignApproved DesignStatus = "APPROVED"
	DesignRejected DesignStatus = "REJECTED"
)

// Position is the garment-relative placement of one embroidery.
type Position string

const (
	PositionChestLeft   Position = "CHEST_LEFT"
	PositionChestCenter Position = "CHEST_CENTER"
	PositionChestRight  Position = "CHEST_RIGHT"
	PositionBackCenter  Position = "BACK_CENTER"
	PositionSleeveLeft  Position = "SLEEVE_LEFT"
	PositionSleeveRight Position = "SLEEVE_RIGHT"
)

func (p Position) Valid() bool {
	switch p {
	case PositionChestLeft, PositionChestCenter, PositionChestRight,
		PositionBackCenter, PositionSleeveLeft, PositionSleeveRight:
		return true
	}
	return false
}

type CustomizationType string

const (
	CustomizationPhoto    CustomizationType = "PHOTO"
	CustomizationTextOnly CustomizationType = "TEXT_ONLY"
)

// SleeveAddonSKU marks the purchasable sleeve credit line.
const SleeveAddonSKU = "ADDON-SLEEVE"

const MaxSleeveTextLen = 20

var (
	ErrSleeveTextRequired = errors.New("sleeve text is required")
	ErrSleeveTextTooLong  = errors.New("sleeve text is too long")
	ErrUnknownPosition    = errors.New("unknown embroidery position")
)

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	Customer        Customer        `json:"customer"`
	CreatedAt       time.Time       `json:"createdAt"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	DesignerID      string          `json:"designerId,omitempty"`
	EmbroidererID   string          `json:"embroidererId,omitempty"`
	DesignImageURL  string          `json:"designImageUrl,omitempty"`
	MachineFileURL  string          `json:"machineFileUrl,omitempty"`
	TechSheetURL    string          `json:"techSheetUrl,omitempty"`
	ClientFeedback  string          `json:"clientFeedback,omitempty"`
	ProductionIssue string          `json:"productionIssue,omitempty"`
	EvidencePhoto1  string          `json:"evidencePhoto1,omitempty"`
	EvidencePhoto2  string          `json:"evidencePhoto2,omitempty"`
	Items           []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"orderId"`
	GroupID           string            `json:"groupId,omitempty"`
	SKU               string            `json:"sku"`
	ProductName       string            `json:"productName"`
	CustomizationType CustomizationType `json:"customizationType,omitempty"`
	Quantity          int               `json:"quantity"`
	UnitPrice         decimal.Decimal   `json:"unitPrice"`
	Sleeve            *SleeveConfig     `json:"sleeve,omitempty"`
	Slots             []EmbroiderySlot  `json:"slots"`
	DesignImageURL    string            `json:"designImageUrl,omitempty"`
	MachineFileURL    string            `json:"machineFileUrl,omitempty"`
	TechSheetURL      string            `json:"techSheetUrl,omitempty"`
	DesignStatus      DesignStatus      `json:"designStatus,omitempty"`
	DesignFeedback    string            `json:"designFeedback,omitempty"`
}

type EmbroiderySlot struct {
	ID       string     `json:"id"`
	ItemID   string     `json:"itemId"`
	PetName  string     `json:"petName,omitempty"`
	PhotoURL string     `json:"photoUrl,omitempty"`
	Position Position   `json:"position,omitempty"`
	Halo     bool       `json:"halo"`
	Status   SlotStatus `json:"status"`
	AIReason string     `json:"aiReason,omitempty"`
}

type SleeveConfig struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
	Font string `json:"font,omitempty"`
}

func (s SleeveConfig) Validate() error {
	text := strings.TrimSpace(s.Text)
	if text == "" {
		return ErrSleeveTextRequired
	}
	if len([]rune(text)) > MaxSleeveTextLen {
		return ErrSleeveTextTooLong
	}
	return nil
}

// IsSleeveAddon reports whether the item is a sleeve credit rather than a
// photo-bearing product.
func (i OrderItem) IsSleeveAddon() bool {
	return strings.EqualFold(i.SKU, SleeveAddonSKU) || i.CustomizationType == CustomizationTextOnly
}

// IsLocked reports whether customer edits are no longer accepted.
func (o *Order) IsLocked() bool { return !o.Status.Editable() }

// OwnedBy matches the customer by email, case-insensitively.
func (o *Order) OwnedBy(email string) bool {
	return email != "" && strings.EqualFold(strings.TrimSpace(o.Customer.Email), strings.TrimSpace(email))
}

func (o *Order) Item(itemID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// FindSlot locates a slot and returns its item and index within that item.
func (o *Order) FindSlot(slotID string) (*OrderItem, int, bool) {
	for i := range o.Items {
		for k := range o.Items[i].Slots {
			if o.Items[i].Slots[k].ID == slotID {
				return &o.Items[i], k, true
			}
		}
	}
	return nil, -1, false
}

// PhotoItems returns the items whose slots drive readiness.
func (o *Order) PhotoItems() []*OrderItem {
	out := make([]*OrderItem, 0, len(o.Items))
	for i := range o.Items {
		if !o.Items[i].IsSleeveAddon() {
			out = append(out, &o.Items[i])
		}
	}
	return out
}

// Siblings returns the other photo items sharing item's non-empty group id.
func (o *Order) Siblings(item *OrderItem) []*OrderItem {
	if item == nil || item.GroupID == "" {
		return nil
	}
	var out []*OrderItem
	for i := range o.Items {
		sib := &o.Items[i]
		if sib.ID == item.ID || sib.GroupID != item.GroupID || sib.IsSleeveAddon() {
			continue
		}
		out = append(out, sib)
	}
	return out
}

// HasEvidence reports whether both dispatch photos are attached.
func (o *Order) HasEvidence() bool {
	return o.EvidencePhoto1 != "" && o.EvidencePhoto2 != ""
}

// Clone returns a deep copy so callers can mutate freely.
func (o Order) Clone() Order {
	cp := o
	cp.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		cp.Items[i] = it
		cp.Items[i].Slots = append([]EmbroiderySlot(nil), it.Slots...)
		if it.Sleeve != nil {
			s := *it.Sleeve
			cp.Items[i].Sleeve = &s
		}
	}
	return cp
}

type Role string

const (
	RoleCustomer    Role = "CUSTOMER"
	RoleDesigner    Role = "DESIGNER"
	RoleEmbroiderer Role = "EMBROIDERER"
	RoleAdmin       Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDesigner, RoleEmbroiderer, RoleAdmin:
		return true
	}
	return false
}

type StaffMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
