package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/stitch-order-api/internal/adapter/repo"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/stretchr/testify/require"
)

const custEmail = "ana@example.com"

var (
	customer     = usecase.Actor{Subject: "cust-1", Email: custEmail, Role: entity.RoleCustomer}
	stranger     = usecase.Actor{Subject: "cust-2", Email: "bo@example.com", Role: entity.RoleCustomer}
	designer1    = usecase.Actor{Subject: "designer-1", Role: entity.RoleDesigner}
	designer2    = usecase.Actor{Subject: "designer-2", Role: entity.RoleDesigner}
	embroiderer1 = usecase.Actor{Subject: "embroiderer-1", Role: entity.RoleEmbroiderer}
	admin        = usecase.Actor{Subject: "admin-1", Role: entity.RoleAdmin}

	photo = usecase.Upload{Data: []byte("png-bytes"), ContentType: "image/png"}
)

// packOrder builds an order with a two-item pack (i1, i2 in group g, two
// slots each), a single item i3 with one slot and one sleeve credit.
func packOrder(id, email string) *entity.Order {
	item := func(n, group string, slots int) entity.OrderItem {
		it := entity.OrderItem{
			ID:                id + "-" + n,
			OrderID:           id,
			GroupID:           group,
			SKU:               "HOODIE",
			CustomizationType: entity.CustomizationPhoto,
			Quantity:          1,
		}
		for k := 0; k < slots; k++ {
			it.Slots = append(it.Slots, entity.EmbroiderySlot{
				ID:     fmt.Sprintf("%s-%s-%d", id, n, k),
				ItemID: it.ID,
				Status: entity.SlotEmpty,
			})
		}
		return it
	}
	return &entity.Order{
		ID:        id,
		Customer:  entity.Customer{Name: "Ana", Email: email},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:    entity.StatusPendingUpload,
		Items: []entity.OrderItem{
			item("i1", "g", 2),
			item("i2", "g", 2),
			item("i3", "", 1),
			{ID: id + "-sleeve", OrderID: id, SKU: entity.SleeveAddonSKU, Quantity: 1},
		},
	}
}

type files struct {
	mu   sync.Mutex
	keys []string
	fail map[string]error // by key suffix
}

func (f *files) Put(_ context.Context, key string, _ usecase.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for suffix, err := range f.fail {
		if strings.HasSuffix(key, suffix) {
			return "", err
		}
	}
	f.keys = append(f.keys, key)
	return "https://files.test/" + key, nil
}

type assessor struct {
	fn   func(img usecase.Upload) (usecase.Verdict, error)
	seen [][]byte
}

func (a *assessor) Assess(_ context.Context, img usecase.Upload) (usecase.Verdict, error) {
	a.seen = append(a.seen, img.Data)
	return a.fn(img)
}

func approveAll(usecase.Upload) (usecase.Verdict, error) {
	return usecase.Verdict{Approved: true}, nil
}

func rejectWith(reason string) func(usecase.Upload) (usecase.Verdict, error) {
	return func(usecase.Upload) (usecase.Verdict, error) {
		return usecase.Verdict{Approved: false, Reason: reason}, nil
	}
}

type editor struct {
	out usecase.Upload
	err error
}

func (e *editor) Edit(context.Context, usecase.Upload, string) (usecase.Upload, error) {
	return e.out, e.err
}

type events struct {
	mu   sync.Mutex
	msgs []usecase.StatusChangedMsg
}

func (e *events) PublishStatusChanged(_ context.Context, m usecase.StatusChangedMsg) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, m)
	return nil
}

func (e *events) last() usecase.StatusChangedMsg {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.msgs) == 0 {
		return usecase.StatusChangedMsg{}
	}
	return e.msgs[len(e.msgs)-1]
}

type orderCache struct {
	mu            sync.Mutex
	lists         map[string][]entity.Order
	invalidations int
}

func (c *orderCache) GetOrders(_ context.Context, subject string) ([]entity.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lists[subject]
	return v, ok, nil
}

func (c *orderCache) SetOrders(_ context.Context, subject string, orders []entity.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lists == nil {
		c.lists = map[string][]entity.Order{}
	}
	c.lists[subject] = orders
	return nil
}

func (c *orderCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = nil
	c.invalidations++
	return nil
}

type fixture struct {
	store    *repo.MemoryStore
	files    *files
	assessor *assessor
	editor   *editor
	events   *events
	cache    *orderCache
	coord    *usecase.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemoryStore()
	store.AddStaff(
		entity.StaffMember{ID: "designer-1", Name: "Dana", Role: entity.RoleDesigner},
		entity.StaffMember{ID: "designer-2", Name: "Dev", Role: entity.RoleDesigner},
		entity.StaffMember{ID: "embroiderer-1", Name: "Eli", Role: entity.RoleEmbroiderer},
		entity.StaffMember{ID: "admin-1", Name: "Ada", Role: entity.RoleAdmin},
	)
	require.NoError(t, store.CreateOrder(context.Background(), packOrder("o1", custEmail)))

	f := &fixture{
		store:    store,
		files:    &files{},
		assessor: &assessor{fn: approveAll},
		editor:   &editor{},
		events:   &events{},
		cache:    &orderCache{},
	}
	f.coord = usecase.NewCoordinator(usecase.Deps{
		Store:           store,
		Staff:           store,
		Files:           f.files,
		Assessor:        f.assessor,
		Editor:          f.editor,
		Events:          f.events,
		Cache:           f.cache,
		SyncConcurrency: 4,
		Now:             func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	})
	return f
}

func (f *fixture) get(t *testing.T, id string) *entity.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) slot(t *testing.T, orderID, slotID string) entity.EmbroiderySlot {
	t.Helper()
	item, idx, ok := f.get(t, orderID).FindSlot(slotID)
	require.True(t, ok, "slot %s", slotID)
	return item.Slots[idx]
}

func (f *fixture) upload(t *testing.T, slotID string) usecase.UploadResult {
	t.Helper()
	res, err := f.coord.InitiateUpload(context.Background(), usecase.InitiateUploadRequest{
		Actor: customer, OrderID: "o1", SlotID: slotID, Image: photo,
	})
	require.NoError(t, err)
	return res
}

// readyForDesign approves every slot of o1, which hands it to designer-1.
func (f *fixture) readyForDesign(t *testing.T) {
	t.Helper()
	for _, id := range []string{"o1-i1-0", "o1-i1-1", "o1-i3-0"} {
		f.upload(t, id)
	}
	require.Equal(t, entity.StatusWaitingForDesign, f.get(t, "o1").Status)
}

func designFiles(itemID string) usecase.SubmitDesignRequest {
	return usecase.SubmitDesignRequest{
		Actor:       designer1,
		OrderID:     "o1",
		ItemID:      itemID,
		Image:       usecase.Upload{Data: []byte("design"), ContentType: "image/png"},
		MachineFile: usecase.Upload{Data: []byte("dst"), ContentType: "application/octet-stream"},
		TechSheet:   usecase.Upload{Data: []byte("pdf"), ContentType: "application/pdf"},
	}
}

// readyToEmbroider walks o1 through design approval.
func (f *fixture) readyToEmbroider(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.readyForDesign(t)
	for _, id := range []string{"o1-i1", "o1-i2", "o1-i3"} {
		_, err := f.coord.SubmitDesign(ctx, designFiles(id))
		require.NoError(t, err)
	}
	_, err := f.coord.ReviewDesign(ctx, usecase.ReviewDesignRequest{Actor: customer, OrderID: "o1", Approved: true})
	require.NoError(t, err)
	require.Equal(t, entity.StatusReadyToEmbroider, f.get(t, "o1").Status)
}

func ptr[T any](v T) *T { return &v }
