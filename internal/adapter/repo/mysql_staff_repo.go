package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
)

type MySQLStaffRepo struct{ db *sql.DB }

func NewMySQLStaffRepo(db *sql.DB) *MySQLStaffRepo { return &MySQLStaffRepo{db: db} }

// ListStaff returns members holding role in stable id order; the balancer's
// tie-break depends on it.
func (r *MySQLStaffRepo) ListStaff(ctx context.Context, role entity.Role) ([]entity.StaffMember, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,name,role FROM staff WHERE role=? ORDER BY id`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.StaffMember
	for rows.Next() {
		var m entity.StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MySQLStaffRepo) RoleOf(ctx context.Context, subject string) (entity.Role, error) {
	var role entity.Role
	err := r.db.QueryRowContext(ctx, `SELECT role FROM staff WHERE id=?`, subject).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

var _ usecase.StaffDirectory = (*MySQLStaffRepo)(nil)
