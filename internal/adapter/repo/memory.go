package repo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
)

// Fault lets tests fail a store call. op is the method name, id the row key.
type Fault func(op, id string) error

// MemoryStore keeps orders and staff in process. Reads return deep copies.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]entity.Order
	staff  []entity.StaffMember
	fault  Fault
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]entity.Order)}
}

// InjectFault installs f for every later call; nil clears it.
func (m *MemoryStore) InjectFault(f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

func (m *MemoryStore) check(op, id string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, id)
}

func (m *MemoryStore) AddStaff(members ...entity.StaffMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff = append(m.staff, members...)
	sort.SliceStable(m.staff, func(i, j int) bool { return m.staff[i].ID < m.staff[j].ID })
}

func (m *MemoryStore) CreateOrder(_ context.Context, o *entity.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateOrder", o.ID); err != nil {
		return err
	}
	if _, ok := m.orders[o.ID]; ok {
		return ErrAlreadyExists
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryStore) GetOrder(_ context.Context, id string) (*entity.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("GetOrder", id); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o.Clone()
	return &cp, nil
}

func (m *MemoryStore) ListOrders(_ context.Context, scope usecase.Scope) ([]entity.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListOrders", scope.Subject); err != nil {
		return nil, err
	}
	out := make([]entity.Order, 0)
	for _, o := range m.orders {
		if !inScope(scope, &o) {
			continue
		}
		out = append(out, o.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func inScope(s usecase.Scope, o *entity.Order) bool {
	switch s.Role {
	case entity.RoleAdmin:
		return true
	case entity.RoleDesigner:
		return s.Subject != "" && o.DesignerID == s.Subject
	case entity.RoleEmbroiderer:
		return s.Subject != "" && o.EmbroidererID == s.Subject
	case entity.RoleCustomer:
		return o.OwnedBy(s.Email)
	}
	return false
}

func sortNewestFirst(orders []entity.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (m *MemoryStore) ListOrderHeads(_ context.Context) ([]entity.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListOrderHeads", ""); err != nil {
		return nil, err
	}
	out := make([]entity.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if o.Status == entity.StatusDispatched {
			continue
		}
		head := o
		head.Items = nil
		out = append(out, head)
	}
	return out, nil
}

func (m *MemoryStore) UpdateOrder(_ context.Context, id string, p entity.OrderPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateOrder", id); err != nil {
		return err
	}
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	m.orders[id] = p.Apply(o)
	return nil
}

func (m *MemoryStore) UpdateItem(_ context.Context, itemID string, p entity.ItemPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateItem", itemID); err != nil {
		return err
	}
	for id, o := range m.orders {
		if it, ok := o.Item(itemID); ok {
			*it = p.Apply(*it)
			m.orders[id] = o
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) UpdateSlot(_ context.Context, slotID string, p entity.SlotPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateSlot", slotID); err != nil {
		return err
	}
	for id, o := range m.orders {
		if it, idx, ok := o.FindSlot(slotID); ok {
			it.Slots[idx] = p.Apply(it.Slots[idx])
			m.orders[id] = o
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ListStaff(_ context.Context, role entity.Role) ([]entity.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("ListStaff", string(role)); err != nil {
		return nil, err
	}
	var out []entity.StaffMember
	for _, s := range m.staff {
		if s.Role == role {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) RoleOf(_ context.Context, subject string) (entity.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("RoleOf", subject); err != nil {
		return "", err
	}
	for _, s := range m.staff {
		if strings.EqualFold(s.ID, subject) {
			return s.Role, nil
		}
	}
	return "", ErrNotFound
}

var (
	_ usecase.OrderStore     = (*MemoryStore)(nil)
	_ usecase.StaffDirectory = (*MemoryStore)(nil)
)
