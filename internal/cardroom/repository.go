package cardroom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists records received from the hub into the local ledger.
// Writes are upserts keyed by the record's uuid, so a redelivered event
// overwrites rather than duplicates.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a ledger repository over an open, migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// SavePurchase upserts a purchase for tenantID.
func (r *Repository) SavePurchase(ctx context.Context, tenantID string, p *Purchase) error {
	if err := checkKeys(tenantID, p.UUID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases (uuid, tenant_id, purchase_type, game_id, customer_id, item,
			payment_status, status, price, used_points, purchased_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			purchase_type = excluded.purchase_type,
			game_id = excluded.game_id,
			customer_id = excluded.customer_id,
			item = excluded.item,
			payment_status = excluded.payment_status,
			status = excluded.status,
			price = excluded.price,
			used_points = excluded.used_points,
			purchased_at = excluded.purchased_at,
			received_at = excluded.received_at`,
		p.UUID, tenantID, p.PurchaseType, nullableInt(p.GameID), nullableInt(p.CustomerID), p.Item,
		p.PaymentStatus, p.Status, p.Price, p.UsedPoints, nullableTime(p.PurchasedAt), r.stamp(),
	)
	if err != nil {
		return fmt.Errorf("saving purchase %s: %w", p.UUID, err)
	}
	return nil
}

// GetPurchase returns the purchase with uuid, or ErrNotFound.
func (r *Repository) GetPurchase(ctx context.Context, tenantID, uuid string) (*Purchase, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT uuid, purchase_type, game_id, customer_id, item, payment_status,
			status, price, used_points, purchased_at
		FROM purchases WHERE tenant_id = ? AND uuid = ?`, tenantID, uuid)

	var (
		p           Purchase
		game, cust  sql.NullInt64
		purchasedAt sql.NullString
	)
	err := row.Scan(&p.UUID, &p.PurchaseType, &game, &cust, &p.Item, &p.PaymentStatus,
		&p.Status, &p.Price, &p.UsedPoints, &purchasedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading purchase %s: %w", uuid, err)
	}
	p.GameID = intPtr(game)
	p.CustomerID = intPtr(cust)
	p.PurchasedAt = scanTime(purchasedAt)
	return &p, nil
}

// SaveCustomer upserts a customer and any point history embedded in it,
// in one transaction.
func (r *Repository) SaveCustomer(ctx context.Context, tenantID string, c *Customer) error {
	if err := checkKeys(tenantID, c.UUID); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stamp := r.stamp()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (uuid, tenant_id, name, phone_number, email, game_join_count,
			visit_count, point, total_point, remark, registered_at, last_visit_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			name = excluded.name,
			phone_number = excluded.phone_number,
			email = excluded.email,
			game_join_count = excluded.game_join_count,
			visit_count = excluded.visit_count,
			point = excluded.point,
			total_point = excluded.total_point,
			remark = excluded.remark,
			registered_at = excluded.registered_at,
			last_visit_at = excluded.last_visit_at,
			received_at = excluded.received_at`,
		c.UUID, tenantID, c.Name, c.PhoneNumber, c.Email, c.GameJoinCount,
		c.VisitCount, c.Point, c.TotalPoint, c.Remark,
		nullableTime(c.RegisteredAt), nullableTime(c.LastVisitAt), stamp,
	)
	if err != nil {
		return fmt.Errorf("saving customer %s: %w", c.UUID, err)
	}

	for i := range c.PointHistory {
		if err := upsertPointEntry(ctx, tx, tenantID, &c.PointHistory[i], stamp); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing customer %s: %w", c.UUID, err)
	}
	return nil
}

// GetCustomer returns the customer with uuid, without point history.
func (r *Repository) GetCustomer(ctx context.Context, tenantID, uuid string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT uuid, name, phone_number, email, game_join_count, visit_count,
			point, total_point, remark, registered_at, last_visit_at
		FROM customers WHERE tenant_id = ? AND uuid = ?`, tenantID, uuid)

	var (
		c             Customer
		registered, v sql.NullString
	)
	err := row.Scan(&c.UUID, &c.Name, &c.PhoneNumber, &c.Email, &c.GameJoinCount, &c.VisitCount,
		&c.Point, &c.TotalPoint, &c.Remark, &registered, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading customer %s: %w", uuid, err)
	}
	c.RegisteredAt = scanTime(registered)
	c.LastVisitAt = scanTime(v)
	return &c, nil
}

// SavePointEntry upserts one point history entry.
func (r *Repository) SavePointEntry(ctx context.Context, tenantID string, e *PointEntry) error {
	if err := checkKeys(tenantID, e.UUID); err != nil {
		return err
	}
	return upsertPointEntry(ctx, r.db, tenantID, e, r.stamp())
}

// ListPointEntries returns a customer's point history, oldest first.
func (r *Repository) ListPointEntries(ctx context.Context, tenantID string, customerID int64) ([]PointEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uuid, customer_id, reason, amount, available_amount, is_increase,
			is_expired, expire_at, created_at
		FROM point_history
		WHERE tenant_id = ? AND customer_id = ?
		ORDER BY created_at, uuid`, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying point history: %w", err)
	}
	defer rows.Close()

	var entries []PointEntry
	for rows.Next() {
		var (
			e                 PointEntry
			cust              sql.NullInt64
			increase, expired int
			expireAt, created sql.NullString
		)
		if err := rows.Scan(&e.UUID, &cust, &e.Reason, &e.Amount, &e.AvailableAmount,
			&increase, &expired, &expireAt, &created); err != nil {
			return nil, fmt.Errorf("scanning point history: %w", err)
		}
		e.CustomerID = intPtr(cust)
		e.IsIncrease = increase != 0
		e.IsExpired = expired != 0
		e.ExpireAt = scanTime(expireAt)
		e.CreatedAt = scanTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordPlayerExit stores a player exit. Repeats of the same exit are ignored.
func (r *Repository) RecordPlayerExit(ctx context.Context, tenantID string, x *PlayerExit) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	exitedAt := x.ExitedAt
	if exitedAt.IsZero() {
		exitedAt = NewTime(r.now())
	}
	var seat sql.NullInt64
	if x.Seat != nil {
		seat = sql.NullInt64{Int64: int64(*x.Seat), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO player_exits (tenant_id, game_id, customer_id, seat, exited_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tenantID, x.GameID, x.CustomerID, seat, formatTime(exitedAt), r.stamp(),
	)
	if err != nil {
		return fmt.Errorf("recording player exit: %w", err)
	}
	return nil
}

// ListPlayerExits returns exits recorded for a game, oldest first.
func (r *Repository) ListPlayerExits(ctx context.Context, tenantID string, gameID int64) ([]PlayerExit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT game_id, customer_id, seat, exited_at
		FROM player_exits
		WHERE tenant_id = ? AND game_id = ?
		ORDER BY exited_at, id`, tenantID, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying player exits: %w", err)
	}
	defer rows.Close()

	var exits []PlayerExit
	for rows.Next() {
		var (
			x        PlayerExit
			seat     sql.NullInt64
			exitedAt sql.NullString
		)
		if err := rows.Scan(&x.GameID, &x.CustomerID, &seat, &exitedAt); err != nil {
			return nil, fmt.Errorf("scanning player exit: %w", err)
		}
		if seat.Valid {
			s := int(seat.Int64)
			x.Seat = &s
		}
		x.ExitedAt = scanTime(exitedAt)
		exits = append(exits, x)
	}
	return exits, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPointEntry(ctx context.Context, db execer, tenantID string, e *PointEntry, stamp string) error {
	if e.UUID == "" {
		return ErrMissingUUID
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO point_history (uuid, tenant_id, customer_id, reason, amount, available_amount,
			is_increase, is_expired, expire_at, created_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			customer_id = excluded.customer_id,
			reason = excluded.reason,
			amount = excluded.amount,
			available_amount = excluded.available_amount,
			is_increase = excluded.is_increase,
			is_expired = excluded.is_expired,
			expire_at = excluded.expire_at,
			created_at = excluded.created_at,
			received_at = excluded.received_at`,
		e.UUID, tenantID, nullableInt(e.CustomerID), e.Reason, e.Amount, e.AvailableAmount,
		boolToInt(e.IsIncrease), boolToInt(e.IsExpired), nullableTime(e.ExpireAt), nullableTime(e.CreatedAt), stamp,
	)
	if err != nil {
		return fmt.Errorf("saving point entry %s: %w", e.UUID, err)
	}
	return nil
}

func checkKeys(tenantID, uuid string) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	if uuid == "" {
		return ErrMissingUUID
	}
	return nil
}

func (r *Repository) stamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func formatTime(t Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func scanTime(s sql.NullString) Time {
	if !s.Valid {
		return Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return Time{}
	}
	return NewTime(t)
}

func nullableInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
