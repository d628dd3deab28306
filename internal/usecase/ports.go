package usecase

import (
	"context"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
)

// Scope restricts an order read to what the requesting identity may see.
type Scope struct {
	Role    entity.Role
	Subject string
	Email   string
}

// OrderStore is the persistence port. Writes are single-row; nothing beyond
// "one row write succeeds or fails" is assumed.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *entity.Order) error
	GetOrder(ctx context.Context, id string) (*entity.Order, error)
	ListOrders(ctx context.Context, scope Scope) ([]entity.Order, error)
	// ListOrderHeads returns orders without items, for load balancing.
	ListOrderHeads(ctx context.Context) ([]entity.Order, error)
	UpdateOrder(ctx context.Context, id string, p entity.OrderPatch) error
	UpdateItem(ctx context.Context, itemID string, p entity.ItemPatch) error
	UpdateSlot(ctx context.Context, slotID string, p entity.SlotPatch) error
}

type StaffDirectory interface {
	ListStaff(ctx context.Context, role entity.Role) ([]entity.StaffMember, error)
	RoleOf(ctx context.Context, subject string) (entity.Role, error)
}

// Verdict is the quality-assessment outcome for one photo.
type Verdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

type QualityAssessor interface {
	Assess(ctx context.Context, img Upload) (Verdict, error)
}

type ImageEditor interface {
	Edit(ctx context.Context, img Upload, instruction string) (Upload, error)
}

// FileStorage stores bytes under key and returns a publicly resolvable URL.
type FileStorage interface {
	Put(ctx context.Context, key string, f Upload) (string, error)
}

type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, msg StatusChangedMsg) error
}

// OrderCache is the read-through cache for scoped order lists.
type OrderCache interface {
	GetOrders(ctx context.Context, subject string) ([]entity.Order, bool, error)
	SetOrders(ctx context.Context, subject string, orders []entity.Order) error
	Invalidate(ctx context.Context) error
}

type RoleCache interface {
	GetRole(ctx context.Context, subject string) (entity.Role, bool, error)
	SetRole(ctx context.Context, subject string, role entity.Role, ttl time.Duration) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}
