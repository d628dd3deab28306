package packsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packOrder() *entity.Order {
	mk := func(itemID, group string, n int) entity.OrderItem {
		it := entity.OrderItem{ID: itemID, GroupID: group}
		for k := 0; k < n; k++ {
			it.Slots = append(it.Slots, entity.EmbroiderySlot{
				ID: itemID + "-s" + string(rune('0'+k)), ItemID: itemID, Status: entity.SlotEmpty,
			})
		}
		return it
	}
	return &entity.Order{ID: "ORD-1", Items: []entity.OrderItem{
		mk("A", "G", 2),
		mk("B", "G", 2),
		mk("C", "G", 2),
		mk("D", "", 2),
		mk("E", "H", 2),
	}}
}

type recorder struct {
	mu     sync.Mutex
	writes map[string]entity.SlotPatch
	fail   map[string]error
}

func (r *recorder) ApplySlot(_ context.Context, item *entity.OrderItem, slot *entity.EmbroiderySlot, change entity.SlotPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[item.ID]; err != nil {
		return err
	}
	if r.writes == nil {
		r.writes = map[string]entity.SlotPatch{}
	}
	r.writes[slot.ID] = change
	*slot = change.Apply(*slot)
	return nil
}

func TestSynchronizePropagatesPositionToGroupOnly(t *testing.T) {
	o := packOrder()
	rec := &recorder{}
	change := entity.SlotPatch{Position: entity.Ptr(entity.PositionChestLeft)}

	res, err := New(0).Synchronize(context.Background(), o, "A", 0, change, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-s0", "C-s0"}, res.Applied)

	for _, it := range o.Items {
		for k, s := range it.Slots {
			inGroup := it.GroupID == "G" && it.ID != "A" && k == 0
			if inGroup {
				assert.Equal(t, entity.PositionChestLeft, s.Position, s.ID)
			} else {
				assert.Empty(t, s.Position, s.ID)
			}
		}
	}
}

func TestSynchronizeSkipsMalformedSibling(t *testing.T) {
	o := packOrder()
	o.Items[2].Slots = o.Items[2].Slots[:1]
	rec := &recorder{}

	res, err := New(2).Synchronize(context.Background(), o, "A", 1, entity.SlotPatch{PetName: entity.Ptr("Luna")}, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-s1"}, res.Applied)
	assert.Equal(t, []string{"C"}, res.Skipped)
}

func TestSynchronizeReportsPartialFailure(t *testing.T) {
	o := packOrder()
	boom := errors.New("store unavailable")
	rec := &recorder{fail: map[string]error{"C": boom}}

	res, err := New(0).Synchronize(context.Background(), o, "A", 0, entity.SlotPatch{Halo: entity.Ptr(true)}, rec)
	require.Error(t, err)

	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Failed, "C")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"B-s0"}, res.Applied)
	assert.True(t, o.Items[1].Slots[0].Halo)
}

func TestSynchronizeWithoutGroupIsNoop(t *testing.T) {
	o := packOrder()
	rec := &recorder{}
	res, err := New(0).Synchronize(context.Background(), o, "D", 0, entity.SlotPatch{PetName: entity.Ptr("Rex")}, rec)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
	assert.Empty(t, rec.writes)
}
