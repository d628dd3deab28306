package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrAlreadyExists = errors.New("order already exists")

// PlaceOrder ingests a storefront order and creates it with empty slots.
type PlaceOrder struct {
	repo  OrderStore
	cache OrderCache
	now   func() time.Time
}

func NewPlaceOrder(repo OrderStore, cache OrderCache) *PlaceOrder {
	return &PlaceOrder{repo: repo, cache: cache, now: time.Now}
}

// Execute is idempotent by order id: a replayed message is a no-op.
func (uc *PlaceOrder) Execute(ctx context.Context, msg OrderPlacedMsg) (*entity.Order, error) {
	const op = "place order"
	o, err := uc.build(msg)
	if err != nil {
		return nil, invalid(op, err.Error())
	}
	log := logging.FromCtx(ctx).With("op", op, "order_id", o.ID)

	if err := uc.repo.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			log.Info("order already ingested")
			return o, nil
		}
		log.Error("create order failed", "err", err)
		return nil, external(op, "could not save order", err)
	}
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx); err != nil {
			log.Warn("order cache invalidate failed", "err", err)
		}
	}
	log.Info("order placed", "items", len(o.Items))
	return o, nil
}

func (uc *PlaceOrder) build(msg OrderPlacedMsg) (*entity.Order, error) {
	if strings.TrimSpace(msg.Customer.Email) == "" {
		return nil, errors.New("customer email is required")
	}
	if len(msg.Items) == 0 {
		return nil, errors.New("order has no items")
	}
	total, err := parseMoney(msg.Total)
	if err != nil {
		return nil, fmt.Errorf("total: %w", err)
	}

	orderID := msg.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	created := msg.PlacedAt
	if created.IsZero() {
		created = uc.now()
	}
	o := &entity.Order{
		ID: orderID,
		Customer: entity.Customer{
			Name:    msg.Customer.Name,
			Email:   strings.TrimSpace(msg.Customer.Email),
			Phone:   msg.Customer.Phone,
			Address: msg.Customer.Address,
		},
		CreatedAt: created.UTC(),
		Total:     total,
		Status:    entity.StatusPendingUpload,
	}

	groupSlots := map[string]int{}
	for i, im := range msg.Items {
		if im.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive", i)
		}
		price, err := parseMoney(im.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d: unit price: %w", i, err)
		}
		itemID := im.ID
		if itemID == "" {
			itemID = uuid.NewString()
		}
		it := entity.OrderItem{
			ID:                itemID,
			OrderID:           orderID,
			GroupID:           im.GroupID,
			SKU:               im.SKU,
			ProductName:       im.ProductName,
			CustomizationType: entity.CustomizationType(strings.ToUpper(im.CustomizationType)),
			Quantity:          im.Quantity,
			UnitPrice:         price,
		}
		if it.CustomizationType == "" {
			it.CustomizationType = entity.CustomizationPhoto
		}
		if !it.IsSleeveAddon() {
			if im.Slots <= 0 {
				return nil, fmt.Errorf("item %d: a photo item needs at least one slot", i)
			}
			if it.GroupID != "" {
				if n, seen := groupSlots[it.GroupID]; seen && n != im.Slots {
					return nil, fmt.Errorf("item %d: pack %s items must have the same number of slots", i, it.GroupID)
				}
				groupSlots[it.GroupID] = im.Slots
			}
			for k := 0; k < im.Slots; k++ {
				it.Slots = append(it.Slots, entity.EmbroiderySlot{
					ID:     uuid.NewString(),
					ItemID: itemID,
					Status: entity.SlotEmpty,
				})
			}
		}
		o.Items = append(o.Items, it)
	}
	return o, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return d, nil
}
