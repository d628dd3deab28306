// Package draft stages a user's in-progress slot and sleeve edits apart from
// the persisted order until they are committed or discarded.
//
// Reads merge the two: a pending value wins over the persisted one, including
// a pending sleeve removal.
package draft

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/packsync"
)

var (
	ErrLocked        = errors.New("order is locked for editing")
	ErrNotDraftable  = errors.New("field cannot be staged")
	ErrEmptyChange   = errors.New("nothing to stage")
	ErrUnknownSlot   = errors.New("slot does not exist on this order")
	ErrUnknownItem   = errors.New("item does not exist on this order")
	ErrSleeveAddon   = errors.New("a sleeve add-on cannot carry a sleeve configuration")
	ErrNoCredits     = errors.New("no sleeve credits remaining")
	ErrNotConfirmed  = errors.New("discarding pending changes requires confirmation")
	ErrOrderMismatch = errors.New("order does not belong to this buffer")
)

// SleeveChange is a staged sleeve edit. Remove is distinct from "untouched",
// which is the absence of a SleeveChange.
type SleeveChange struct {
	Remove bool                 `json:"remove,omitempty"`
	Config *entity.SleeveConfig `json:"config,omitempty"`
}

// Committer persists staged entries one at a time.
type Committer interface {
	CommitSlot(ctx context.Context, slotID string, p entity.SlotPatch) error
	CommitSleeve(ctx context.Context, itemID string, cfg *entity.SleeveConfig) error
}

// CommitError lists the entries that failed to persist. They stay pending.
type CommitError struct {
	Failed map[string]error // keyed by "slot:<id>" or "sleeve:<id>"
}

func (e *CommitError) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, e.Failed[k])
	}
	return fmt.Sprintf("%d pending change(s) not saved: %s", len(keys), strings.Join(parts, "; "))
}

func (e *CommitError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}

type Buffer struct {
	orderID string
	packs   *packsync.Engine

	mu      sync.Mutex
	slots   map[string]entity.SlotPatch
	sleeves map[string]SleeveChange
}

func NewBuffer(orderID string) *Buffer {
	return &Buffer{
		orderID: orderID,
		packs:   packsync.New(1),
		slots:   map[string]entity.SlotPatch{},
		sleeves: map[string]SleeveChange{},
	}
}

func (b *Buffer) HasPendingChanges() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots) > 0 || len(b.sleeves) > 0
}

// Pending returns copies of the staged entries.
func (b *Buffer) Pending() (map[string]entity.SlotPatch, map[string]SleeveChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slots := make(map[string]entity.SlotPatch, len(b.slots))
	for k, v := range b.slots {
		slots[k] = v
	}
	sleeves := make(map[string]SleeveChange, len(b.sleeves))
	for k, v := range b.sleeves {
		sleeves[k] = v
	}
	return slots, sleeves
}

func (b *Buffer) check(o *entity.Order) error {
	if o.ID != b.orderID {
		return ErrOrderMismatch
	}
	if o.IsLocked() {
		return fmt.Errorf("%w (status %s)", ErrLocked, o.Status)
	}
	return nil
}

// StageSlot records a customer-editable slot change and mirrors it onto the
// pack siblings' slots at the same index, so they show the edit at once.
func (b *Buffer) StageSlot(ctx context.Context, o *entity.Order, slotID string, p entity.SlotPatch) error {
	if err := b.check(o); err != nil {
		return err
	}
	if p.Empty() {
		return ErrEmptyChange
	}
	if !p.Draftable() {
		return ErrNotDraftable
	}
	if err := p.Validate(); err != nil {
		return err
	}
	item, idx, ok := o.FindSlot(slotID)
	if !ok || item.IsSleeveAddon() {
		return ErrUnknownSlot
	}

	b.stage(slotID, p)
	_, err := b.packs.Synchronize(ctx, o, item.ID, idx, p, packsync.TargetFunc(
		func(_ context.Context, _ *entity.OrderItem, slot *entity.EmbroiderySlot, change entity.SlotPatch) error {
			b.stage(slot.ID, change)
			return nil
		}))
	return err
}

func (b *Buffer) stage(slotID string, p entity.SlotPatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slotID] = b.slots[slotID].Merge(p)
}

// StageSleeve records a sleeve add, change or removal. Adding a sleeve to an
// item without one needs a free credit in the merged view.
func (b *Buffer) StageSleeve(o *entity.Order, itemID string, change SleeveChange) error {
	if err := b.check(o); err != nil {
		return err
	}
	item, ok := o.Item(itemID)
	if !ok {
		return ErrUnknownItem
	}
	if item.IsSleeveAddon() {
		return ErrSleeveAddon
	}
	if !change.Remove {
		if change.Config == nil {
			return ErrEmptyChange
		}
		if err := change.Config.Validate(); err != nil {
			return err
		}
		cfg := *change.Config
		change.Config = &cfg
	} else {
		change.Config = nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	view := b.viewLocked(*o)
	merged, _ := view.Item(itemID)
	if !change.Remove && merged.Sleeve == nil && view.SleeveCredits().Remaining == 0 {
		return ErrNoCredits
	}
	if change.Remove && item.Sleeve == nil {
		// removing what was never persisted returns the item to untouched
		delete(b.sleeves, itemID)
		return nil
	}
	b.sleeves[itemID] = change
	return nil
}

// View returns the order as the user should see it: persisted values with
// pending changes merged over them. o is not modified.
func (b *Buffer) View(o entity.Order) entity.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked(o)
}

func (b *Buffer) viewLocked(o entity.Order) entity.Order {
	v := o.Clone()
	for i := range v.Items {
		it := &v.Items[i]
		change, staged := b.sleeves[it.ID]
		it.Sleeve = MergeSleeve(it.Sleeve, change, staged)
		for k := range it.Slots {
			p, staged := b.slots[it.Slots[k].ID]
			it.Slots[k] = MergeSlot(it.Slots[k], p, staged)
		}
	}
	return v
}

// MergeSlot returns the display value of a slot.
func MergeSlot(persisted entity.EmbroiderySlot, pending entity.SlotPatch, staged bool) entity.EmbroiderySlot {
	if !staged {
		return persisted
	}
	return pending.Apply(persisted)
}

// MergeSleeve returns the display value of a sleeve config; a staged removal
// shows as nil even when a config is persisted.
func MergeSleeve(persisted *entity.SleeveConfig, pending SleeveChange, staged bool) *entity.SleeveConfig {
	if !staged {
		return persisted
	}
	if pending.Remove || pending.Config == nil {
		return nil
	}
	cfg := *pending.Config
	return &cfg
}

// Commit persists every pending entry. Saved entries are cleared; failed
// ones stay pending and are reported in a *CommitError. Sleeve removals go
// first so the credits they free are available to additions.
func (b *Buffer) Commit(ctx context.Context, c Committer) error {
	slots, sleeves := b.Pending()
	failed := map[string]error{}

	itemIDs := make([]string, 0, len(sleeves))
	for id := range sleeves {
		itemIDs = append(itemIDs, id)
	}
	sort.SliceStable(itemIDs, func(i, j int) bool {
		ri, rj := sleeves[itemIDs[i]].Remove, sleeves[itemIDs[j]].Remove
		if ri != rj {
			return ri
		}
		return itemIDs[i] < itemIDs[j]
	})
	for _, id := range itemIDs {
		change := sleeves[id]
		if err := c.CommitSleeve(ctx, id, change.Config); err != nil {
			failed["sleeve:"+id] = err
			continue
		}
		b.clearSleeve(id, change)
	}

	slotIDs := make([]string, 0, len(slots))
	for id := range slots {
		slotIDs = append(slotIDs, id)
	}
	sort.Strings(slotIDs)
	for _, id := range slotIDs {
		if err := c.CommitSlot(ctx, id, slots[id]); err != nil {
			failed["slot:"+id] = err
			continue
		}
		b.clearSlot(id, slots[id])
	}

	if len(failed) > 0 {
		return &CommitError{Failed: failed}
	}
	return nil
}

// clearSlot drops the entry unless it was restaged while the commit ran.
func (b *Buffer) clearSlot(id string, committed entity.SlotPatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.slots[id]; ok && sameSlotPatch(cur, committed) {
		delete(b.slots, id)
	}
}

func (b *Buffer) clearSleeve(id string, committed SleeveChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.sleeves[id]; ok && sameSleeveChange(cur, committed) {
		delete(b.sleeves, id)
	}
}

// Discard drops every pending change. It is irreversible, so the caller
// must confirm.
func (b *Buffer) Discard(confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = map[string]entity.SlotPatch{}
	b.sleeves = map[string]SleeveChange{}
	return nil
}

func sameSlotPatch(a, b entity.SlotPatch) bool {
	return eqPtr(a.PetName, b.PetName) && eqPtr(a.PhotoURL, b.PhotoURL) &&
		eqPtr(a.Position, b.Position) && eqPtr(a.Halo, b.Halo) &&
		eqPtr(a.Status, b.Status) && eqPtr(a.AIReason, b.AIReason)
}

func sameSleeveChange(a, b SleeveChange) bool {
	return a.Remove == b.Remove && eqPtr(a.Config, b.Config)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
