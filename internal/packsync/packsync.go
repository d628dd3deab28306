// Package packsync keeps photo-derived slot fields identical across items
// that were bought together as a pack.
package packsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of sibling writes in flight.
const DefaultConcurrency = 8

// Target receives one sibling write. The persisted store and the local edit
// buffer are both targets; the propagation rules are the same.
type Target interface {
	ApplySlot(ctx context.Context, item *entity.OrderItem, slot *entity.EmbroiderySlot, change entity.SlotPatch) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(ctx context.Context, item *entity.OrderItem, slot *entity.EmbroiderySlot, change entity.SlotPatch) error

func (f TargetFunc) ApplySlot(ctx context.Context, item *entity.OrderItem, slot *entity.EmbroiderySlot, change entity.SlotPatch) error {
	return f(ctx, item, slot, change)
}

type Result struct {
	Applied []string // sibling slot ids written
	Skipped []string // sibling item ids without a slot at the index
}

// SyncError reports siblings whose write failed. Siblings that succeeded
// are not rolled back.
type SyncError struct {
	Failed map[string]error // keyed by sibling item id
}

func (e *SyncError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e.Failed[id])
	}
	return fmt.Sprintf("pack sync failed for %d item(s): %s", len(ids), strings.Join(parts, "; "))
}

func (e *SyncError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}

type Engine struct {
	limit int
}

func New(limit int) *Engine {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Engine{limit: limit}
}

// Synchronize applies change to the slot at slotIndex of every item sharing
// the source item's group id. The source item itself is not written.
func (e *Engine) Synchronize(ctx context.Context, order *entity.Order, sourceItemID string, slotIndex int, change entity.SlotPatch, target Target) (Result, error) {
	var res Result
	source, ok := order.Item(sourceItemID)
	if !ok || source.GroupID == "" || change.Empty() {
		return res, nil
	}

	var (
		mu     sync.Mutex
		failed = map[string]error{}
		g      errgroup.Group
	)
	g.SetLimit(e.limit)

	for _, sib := range order.Siblings(source) {
		if slotIndex < 0 || slotIndex >= len(sib.Slots) {
			res.Skipped = append(res.Skipped, sib.ID)
			continue
		}
		sib := sib
		slot := &sib.Slots[slotIndex]
		g.Go(func() error {
			err := target.ApplySlot(ctx, sib, slot, change)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[sib.ID] = err
				return nil
			}
			res.Applied = append(res.Applied, slot.ID)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(res.Applied)
	if len(failed) > 0 {
		return res, &SyncError{Failed: failed}
	}
	return res, nil
}
