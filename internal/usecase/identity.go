package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// IdentityResolver turns an authenticated subject into an Actor in two
// steps: the token supplies identity, the staff directory supplies the role.
// Anything that cannot be resolved is treated as a customer.
type IdentityResolver struct {
	staff StaffDirectory
	roles RoleCache
	ttl   time.Duration
}

func NewIdentityResolver(staff StaffDirectory, roles RoleCache, ttl time.Duration) *IdentityResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IdentityResolver{staff: staff, roles: roles, ttl: ttl}
}

func (r *IdentityResolver) Resolve(ctx context.Context, subject, email string) Actor {
	a := Actor{Subject: subject, Email: email, Role: entity.RoleCustomer}
	if subject == "" {
		return a
	}
	log := logging.FromCtx(ctx).With("subject", subject)

	if r.roles != nil {
		role, ok, err := r.roles.GetRole(ctx, subject)
		if err != nil {
			log.Warn("role cache read failed", "err", err)
		} else if ok {
			a.Role = role
			return a
		}
	}

	role, err := r.staff.RoleOf(ctx, subject)
	switch {
	case errors.Is(err, ErrNotFound), err == nil && !role.Valid():
		role = entity.RoleCustomer
	case err != nil:
		// not cached, so the next request retries the lookup
		log.Warn("role lookup failed, defaulting to customer", "err", err)
		return a
	}
	a.Role = role
	if r.roles != nil {
		if err := r.roles.SetRole(ctx, subject, role, r.ttl); err != nil {
			log.Warn("role cache write failed", "err", err)
		}
	}
	return a
}
