package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/aq2208/stitch-order-api/internal/adapter/observ"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
)

// TopicOrdersPlaced is where the storefront announces checkouts.
const TopicOrdersPlaced = "storefront.orders.placed"

type placer interface {
	Execute(ctx context.Context, msg usecase.OrderPlacedMsg) (*entity.Order, error)
}

type OrderPlacedHandler struct {
	Orders placer
}

func NewOrderPlacedHandler(uc placer) *OrderPlacedHandler {
	return &OrderPlacedHandler{Orders: uc}
}

// Handle creates the order. Malformed orders are poison; storage failures
// are retried.
func (h *OrderPlacedHandler) Handle(ctx context.Context, ev usecase.OrderPlacedMsg) error {
	_, err := h.Orders.Execute(ctx, ev)
	observ.ObservePlaced(err)
	if errors.Is(err, usecase.ErrValidation) {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}
	return err
}
