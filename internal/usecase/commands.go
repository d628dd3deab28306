package usecase

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/aq2208/stitch-order-api/internal/entity"
)

// Actor is the resolved identity issuing a command.
type Actor struct {
	Subject string
	Email   string
	Role    entity.Role
}

func (a Actor) Scope() Scope { return Scope{Role: a.Role, Subject: a.Subject, Email: a.Email} }

// Upload is one file payload.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

var ErrBadDataURI = errors.New("malformed data URI")

// ParseDataURI decodes "data:<type>;base64,<payload>". A bare base64 string
// is accepted with an empty content type.
func ParseDataURI(s string) (Upload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Upload{}, ErrBadDataURI
	}
	var ct, payload string
	if strings.HasPrefix(s, "data:") {
		meta, body, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return Upload{}, ErrBadDataURI
		}
		ct, payload = strings.TrimSuffix(meta, ";base64"), body
	} else {
		payload = s
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Upload{}, ErrBadDataURI
	}
	if len(data) == 0 {
		return Upload{}, ErrBadDataURI
	}
	return Upload{Data: data, ContentType: ct}, nil
}

type UpdateSlotRequest struct {
	Actor    Actor
	OrderID  string
	SlotID   string
	PetName  *string
	Position *entity.Position
	Halo     *bool
}

func (r UpdateSlotRequest) patch() entity.SlotPatch {
	return entity.SlotPatch{PetName: r.PetName, Position: r.Position, Halo: r.Halo}
}

// UpdateSleeveRequest sets Config on the item; a nil Config removes it.
type UpdateSleeveRequest struct {
	Actor   Actor
	OrderID string
	ItemID  string
	Config  *entity.SleeveConfig
}

type InitiateUploadRequest struct {
	Actor   Actor
	OrderID string
	SlotID  string
	Image   Upload
}

type EditImageRequest struct {
	Actor       Actor
	OrderID     string
	SlotID      string
	Image       Upload
	Instruction string
}

type SubmitDesignRequest struct {
	Actor       Actor
	OrderID     string
	ItemID      string
	Image       Upload
	MachineFile Upload
	TechSheet   Upload
}

// ReviewDesignRequest reviews one item, or every design-bearing item when
// ItemID is empty.
type ReviewDesignRequest struct {
	Actor    Actor
	OrderID  string
	ItemID   string
	Approved bool
	Feedback string
}

type UpdateStatusRequest struct {
	Actor   Actor
	OrderID string
	Status  entity.OrderStatus
}

type ReportIssueRequest struct {
	Actor   Actor
	OrderID string
	Issue   string
}

type ResolveIssueRequest struct {
	Actor   Actor
	OrderID string
}

type UploadEvidenceRequest struct {
	Actor   Actor
	OrderID string
	Slot    int // 1 or 2
	Image   Upload
}

type FinalizeOrderRequest struct {
	Actor          Actor
	OrderID        string
	PendingChanges bool
}

// UploadResult reports the photo pipeline outcome for one slot.
type UploadResult struct {
	Slot    entity.EmbroiderySlot `json:"slot"`
	Verdict Verdict               `json:"verdict"`
	Status  entity.OrderStatus    `json:"orderStatus"`
}
