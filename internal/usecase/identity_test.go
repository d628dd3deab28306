package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aq2208/stitch-order-api/internal/adapter/repo"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/stretchr/testify/assert"
)

type roleCache struct {
	roles map[string]entity.Role
}

func (c *roleCache) GetRole(_ context.Context, subject string) (entity.Role, bool, error) {
	r, ok := c.roles[subject]
	return r, ok, nil
}

func (c *roleCache) SetRole(_ context.Context, subject string, role entity.Role, _ time.Duration) error {
	if c.roles == nil {
		c.roles = map[string]entity.Role{}
	}
	c.roles[subject] = role
	return nil
}

func staffStore() *repo.MemoryStore {
	s := repo.NewMemoryStore()
	s.AddStaff(
		entity.StaffMember{ID: "designer-1", Role: entity.RoleDesigner},
		entity.StaffMember{ID: "admin-1", Role: entity.RoleAdmin},
	)
	return s
}

func TestResolveRoleFromDirectory(t *testing.T) {
	cache := &roleCache{}
	r := usecase.NewIdentityResolver(staffStore(), cache, time.Minute)

	a := r.Resolve(context.Background(), "designer-1", "dana@shop.test")
	assert.Equal(t, entity.RoleDesigner, a.Role)
	assert.Equal(t, "dana@shop.test", a.Email)
	assert.Equal(t, entity.RoleDesigner, cache.roles["designer-1"])

	a = r.Resolve(context.Background(), "someone", "ana@example.com")
	assert.Equal(t, entity.RoleCustomer, a.Role)
	assert.Equal(t, entity.RoleCustomer, cache.roles["someone"])
}

func TestResolvePrefersCachedRole(t *testing.T) {
	store := staffStore()
	store.InjectFault(func(op, _ string) error {
		if op == "RoleOf" {
			return errors.New("directory unreachable")
		}
		return nil
	})
	cache := &roleCache{roles: map[string]entity.Role{"admin-1": entity.RoleAdmin}}
	r := usecase.NewIdentityResolver(store, cache, time.Minute)

	assert.Equal(t, entity.RoleAdmin, r.Resolve(context.Background(), "admin-1", "").Role)
}

func TestResolveLookupFailureDefaultsToCustomer(t *testing.T) {
	store := staffStore()
	store.InjectFault(func(op, _ string) error {
		if op == "RoleOf" {
			return errors.New("directory unreachable")
		}
		return nil
	})
	cache := &roleCache{}
	r := usecase.NewIdentityResolver(store, cache, time.Minute)

	a := r.Resolve(context.Background(), "admin-1", "ada@shop.test")
	assert.Equal(t, entity.RoleCustomer, a.Role)
	assert.NotContains(t, cache.roles, "admin-1", "failed lookups are retried, not cached")
}

func TestResolveWithoutSubject(t *testing.T) {
	r := usecase.NewIdentityResolver(staffStore(), nil, 0)
	a := r.Resolve(context.Background(), "", "ana@example.com")
	assert.Equal(t, entity.RoleCustomer, a.Role)
}
