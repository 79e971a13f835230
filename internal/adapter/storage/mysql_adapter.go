package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/checkout/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, version, created_at, updated_at
		FROM product WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Version, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) UpdateProductStock(ctx context.Context, p domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE product
		SET stock = ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		p.Stock, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (m *MySQLAdapter) SetProductStock(ctx context.Context, productID string, stock int64) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE product SET stock = ?, updated_at = NOW() WHERE id = ?`,
		stock, productID,
	)
	if err != nil {
		return fmt.Errorf("set product stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// DecrementStockLocked serializes callers on the product row: SELECT ... FOR
// UPDATE blocks until the lock is free, then check-then-subtract runs with no
// stale read possible.
func (m *MySQLAdapter) DecrementStockLocked(ctx context.Context, productID string, qty int64) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var stock int64
	err = tx.QueryRowContext(ctx, `
		SELECT stock FROM product WHERE id = ? FOR UPDATE`, productID,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrProductNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock product row: %w", err)
	}

	if stock < qty {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE product
		SET stock = stock - ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		qty, productID,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ReserveSlots claims qty AVAILABLE slots one at a time with SKIP LOCKED, so
// rows locked by concurrent callers are skipped instead of waited on. The
// whole claim runs in one transaction: if any claim finds no unlocked slot the
// rollback releases everything reserved so far and no partial debit is
// observable.
func (m *MySQLAdapter) ReserveSlots(ctx context.Context, productID string, qty int64, holder string) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	slotIDs := make([]int64, 0, qty)
	for i := int64(0); i < qty; i++ {
		var slotID int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM stock_slot
			WHERE product_id = ? AND status = 'AVAILABLE'
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, productID,
		).Scan(&slotID)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("select available slot: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE stock_slot
			SET status = 'RESERVED', reserved_at = NOW(), holder = ?
			WHERE id = ?`,
			holder, slotID,
		)
		if err != nil {
			return false, fmt.Errorf("reserve slot: %w", err)
		}
		slotIDs = append(slotIDs, slotID)
	}

	for _, slotID := range slotIDs {
		_, err = tx.ExecContext(ctx, `
			UPDATE stock_slot SET status = 'SOLD' WHERE id = ?`, slotID)
		if err != nil {
			return false, fmt.Errorf("confirm slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (m *MySQLAdapter) InitSlots(ctx context.Context, productID string, n int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stock_slot WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}

	for i := int64(0); i < n; i++ {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_slot (product_id, status) VALUES (?, 'AVAILABLE')`, productID); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) CountSlots(ctx context.Context, productID string, status domain.SlotStatus) (int64, error) {
	var count int64
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stock_slot WHERE product_id = ? AND status = ?`,
		productID, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return count, nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_uid, user_id, product_id, quantity, price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderUID, order.UserID, order.ProductID, order.Quantity,
		order.Price, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrderByUID(ctx context.Context, orderUID string) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_uid, user_id, product_id, quantity, price, status, created_at, updated_at
		FROM orders WHERE order_uid = ?`, orderUID,
	).Scan(&o.ID, &o.OrderUID, &o.UserID, &o.ProductID, &o.Quantity, &o.Price,
		&o.Status, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &o, nil
}

func (m *MySQLAdapter) GetPaymentByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	var gatewayRef sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_id, price, status, gateway_ref, created_at, updated_at
		FROM payments WHERE order_id = ?`, orderID,
	).Scan(&p.ID, &p.OrderID, &p.Price, &p.Status, &gatewayRef, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	p.GatewayRef = gatewayRef.String
	return &p, nil
}

func (m *MySQLAdapter) CreatePayment(ctx context.Context, payment domain.Payment) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, price, status, gateway_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.OrderID, payment.Price, payment.Status,
		payment.GatewayRef, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// MarkPaymentPaid flips READY to PAID exactly once; a second call finds no
// READY row and is a no-op.
func (m *MySQLAdapter) MarkPaymentPaid(ctx context.Context, paymentID, gatewayRef string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'PAID', gateway_ref = ?, updated_at = NOW()
		WHERE id = ? AND status = 'READY'`,
		gatewayRef, paymentID,
	)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) MarkOrderPaid(ctx context.Context, orderID string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = 'paid', updated_at = NOW() WHERE id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}
