package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = usecase.ErrNotFound
	ErrAlreadyExists = usecase.ErrAlreadyExists
)

const mysqlDuplicateEntry = 1062

//go:embed schema.sql
var schemaSQL string

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

// Migrate creates the tables if they are missing.
func (r *MySQLOrderRepo) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *MySQLOrderRepo) CreateOrder(ctx context.Context, o *entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO orders (id,customer_name,customer_email,customer_phone,customer_address,total,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,NOW(3))
`, o.ID, o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.Address,
		o.Total.StringFixed(2), o.Status, o.CreatedAt)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrAlreadyExists
		}
		return err
	}

	for n, it := range o.Items {
		sleeve, err := encodeSleeve(it.Sleeve)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO order_items (id,order_id,line_no,group_id,sku,product_name,customization_type,quantity,unit_price,sleeve_json)
VALUES (?,?,?,?,?,?,?,?,?,?)
`, it.ID, o.ID, n, it.GroupID, it.SKU, it.ProductName, it.CustomizationType, it.Quantity,
			it.UnitPrice.StringFixed(2), sleeve)
		if err != nil {
			return err
		}
		for k, s := range it.Slots {
			_, err = tx.ExecContext(ctx, `
INSERT INTO embroidery_slots (id,item_id,slot_index,pet_name,photo_url,position,halo,status,ai_reason)
VALUES (?,?,?,?,?,?,?,?,?)
`, s.ID, it.ID, k, s.PetName, s.PhotoURL, s.Position, s.Halo, s.Status, s.AIReason)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

const orderColumns = `id,customer_name,customer_email,customer_phone,customer_address,total,status,
designer_id,embroiderer_id,design_image_url,machine_file_url,tech_sheet_url,
client_feedback,production_issue,evidence_photo_1,evidence_photo_2,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (entity.Order, error) {
	var (
		o               entity.Order
		total           string
		feedback, issue sql.NullString
		createdAt       time.Time
	)
	err := row.Scan(&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.Address,
		&total, &o.Status, &o.DesignerID, &o.EmbroidererID, &o.DesignImageURL, &o.MachineFileURL,
		&o.TechSheetURL, &feedback, &issue, &o.EvidencePhoto1, &o.EvidencePhoto2, &createdAt)
	if err != nil {
		return o, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return o, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	o.ClientFeedback = feedback.String
	o.ProductionIssue = issue.String
	o.CreatedAt = createdAt.UTC()
	return o, nil
}

func (r *MySQLOrderRepo) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	orders := []entity.Order{o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *MySQLOrderRepo) ListOrders(ctx context.Context, scope usecase.Scope) ([]entity.Order, error) {
	var (
		where string
		args  []any
	)
	switch scope.Role {
	case entity.RoleAdmin:
	case entity.RoleDesigner:
		where, args = ` WHERE designer_id=?`, []any{scope.Subject}
	case entity.RoleEmbroiderer:
		where, args = ` WHERE embroiderer_id=?`, []any{scope.Subject}
	case entity.RoleCustomer:
		where, args = ` WHERE LOWER(customer_email)=LOWER(?)`, []any{strings.TrimSpace(scope.Email)}
	default:
		return nil, nil
	}
	if scope.Role != entity.RoleAdmin && args[0] == "" {
		return nil, nil
	}
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *MySQLOrderRepo) ListOrderHeads(ctx context.Context) ([]entity.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status<>?`, entity.StatusDispatched)
}

func (r *MySQLOrderRepo) queryOrders(ctx context.Context, q string, args ...any) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// loadItems fills Items for every order with two queries in total.
func (r *MySQLOrderRepo) loadItems(ctx context.Context, orders []entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byOrder := make(map[string]int, len(orders))
	ids := make([]any, len(orders))
	for i, o := range orders {
		byOrder[o.ID] = i
		ids[i] = o.ID
	}
	in := placeholders(len(ids))

	rows, err := r.db.QueryContext(ctx, `
SELECT id,order_id,group_id,sku,product_name,customization_type,quantity,unit_price,sleeve_json,
       design_image_url,machine_file_url,tech_sheet_url,design_status,design_feedback
FROM order_items WHERE order_id IN (`+in+`) ORDER BY order_id,line_no`, ids...)
	if err != nil {
		return err
	}
	itemAt := map[string][2]int{}
	for rows.Next() {
		var (
			it       entity.OrderItem
			price    string
			sleeve   []byte
			feedback sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.GroupID, &it.SKU, &it.ProductName, &it.CustomizationType,
			&it.Quantity, &price, &sleeve, &it.DesignImageURL, &it.MachineFileURL, &it.TechSheetURL,
			&it.DesignStatus, &feedback); err != nil {
			rows.Close()
			return err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			rows.Close()
			return fmt.Errorf("item %s unit price: %w", it.ID, err)
		}
		if it.Sleeve, err = decodeSleeve(sleeve); err != nil {
			rows.Close()
			return fmt.Errorf("item %s sleeve: %w", it.ID, err)
		}
		it.DesignFeedback = feedback.String
		oi := byOrder[it.OrderID]
		orders[oi].Items = append(orders[oi].Items, it)
		itemAt[it.ID] = [2]int{oi, len(orders[oi].Items) - 1}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if len(itemAt) == 0 {
		return nil
	}

	itemIDs := make([]any, 0, len(itemAt))
	for id := range itemAt {
		itemIDs = append(itemIDs, id)
	}
	srows, err := r.db.QueryContext(ctx, `
SELECT id,item_id,pet_name,photo_url,position,halo,status,ai_reason
FROM embroidery_slots WHERE item_id IN (`+placeholders(len(itemIDs))+`) ORDER BY item_id,slot_index`, itemIDs...)
	if err != nil {
		return err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			s      entity.EmbroiderySlot
			reason sql.NullString
		)
		if err := srows.Scan(&s.ID, &s.ItemID, &s.PetName, &s.PhotoURL, &s.Position, &s.Halo, &s.Status, &reason); err != nil {
			return err
		}
		s.AIReason = reason.String
		at := itemAt[s.ItemID]
		it := &orders[at[0]].Items[at[1]]
		it.Slots = append(it.Slots, s)
	}
	return srows.Err()
}

// setList accumulates "col=?" pairs for a single-row UPDATE.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.cols = append(s.cols, col+"=?")
	s.args = append(s.args, v)
}

func (s *setList) str(col string, v *string) {
	if v != nil {
		s.add(col, *v)
	}
}

func (r *MySQLOrderRepo) exec(ctx context.Context, table, id string, s setList) error {
	if len(s.cols) == 0 {
		return nil
	}
	q := `UPDATE ` + table + ` SET ` + strings.Join(s.cols, ",") + ` WHERE id=?`
	res, err := r.db.ExecContext(ctx, q, append(s.args, id)...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm existence
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id=?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UpdateOrder writes status and assignment in the same statement.
func (r *MySQLOrderRepo) UpdateOrder(ctx context.Context, id string, p entity.OrderPatch) error {
	var s setList
	if p.Status != nil {
		s.add("status", string(*p.Status))
	}
	s.str("designer_id", p.DesignerID)
	s.str("embroiderer_id", p.EmbroidererID)
	s.str("design_image_url", p.DesignImageURL)
	s.str("machine_file_url", p.MachineFileURL)
	s.str("tech_sheet_url", p.TechSheetURL)
	s.str("client_feedback", p.ClientFeedback)
	s.str("production_issue", p.ProductionIssue)
	s.str("evidence_photo_1", p.EvidencePhoto1)
	s.str("evidence_photo_2", p.EvidencePhoto2)
	if len(s.cols) > 0 {
		s.cols = append(s.cols, "updated_at=NOW(3)")
	}
	return r.exec(ctx, "orders", id, s)
}

func (r *MySQLOrderRepo) UpdateItem(ctx context.Context, itemID string, p entity.ItemPatch) error {
	var s setList
	if p.SetSleeve {
		sleeve, err := encodeSleeve(p.Sleeve)
		if err != nil {
			return err
		}
		s.add("sleeve_json", sleeve)
	}
	s.str("design_image_url", p.DesignImageURL)
	s.str("machine_file_url", p.MachineFileURL)
	s.str("tech_sheet_url", p.TechSheetURL)
	if p.DesignStatus != nil {
		s.add("design_status", string(*p.DesignStatus))
	}
	s.str("design_feedback", p.DesignFeedback)
	return r.exec(ctx, "order_items", itemID, s)
}

func (r *MySQLOrderRepo) UpdateSlot(ctx context.Context, slotID string, p entity.SlotPatch) error {
	var s setList
	s.str("pet_name", p.PetName)
	s.str("photo_url", p.PhotoURL)
	if p.Position != nil {
		s.add("position", string(*p.Position))
	}
	if p.Halo != nil {
		s.add("halo", *p.Halo)
	}
	if p.Status != nil {
		s.add("status", string(*p.Status))
	}
	s.str("ai_reason", p.AIReason)
	return r.exec(ctx, "embroidery_slots", slotID, s)
}

func encodeSleeve(s *entity.SleeveConfig) (any, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeSleeve(b []byte) (*entity.SleeveConfig, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var s entity.SleeveConfig
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ usecase.OrderStore = (*MySQLOrderRepo)(nil)
