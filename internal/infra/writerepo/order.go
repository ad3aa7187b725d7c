package writerepo

import (
	"context"
	"errors"
	"time"

	"health-entitlement-engine/internal/infra"
	"health-entitlement-engine/internal/infra/db"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(dbtx db.DBTX) *OrderRepository {
	return &OrderRepository{db: dbtx}
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*shared.OrderSnapshot, error) {
	const q = `
SELECT id, buyer_id, out_trade_no, status, paid_at
FROM orders
WHERE id = $1
FOR UPDATE`

	return r.findForUpdate(ctx, q, id)
}

func (r *OrderRepository) FindByOutTradeNoForUpdate(ctx context.Context, outTradeNo string) (*shared.OrderSnapshot, error) {
	const q = `
SELECT id, buyer_id, out_trade_no, status, paid_at
FROM orders
WHERE out_trade_no = $1
FOR UPDATE`

	return r.findForUpdate(ctx, q, outTradeNo)
}

func (r *OrderRepository) findForUpdate(ctx context.Context, q string, arg any) (*shared.OrderSnapshot, error) {
	var snap shared.OrderSnapshot
	err := r.db.QueryRow(ctx, q, arg).Scan(&snap.ID, &snap.BuyerID, &snap.OutTradeNo, &snap.Status, &snap.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("order not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find order", err)
	}

	items, err := r.loadItems(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	snap.Items = items
	return &snap, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID uuid.UUID) ([]shared.OrderItemSnapshot, error) {
	const q = `
SELECT package_id, quantity
FROM order_items
WHERE order_id = $1
ORDER BY created_at, package_id`

	rows, err := r.db.Query(ctx, q, orderID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load order items", err)
	}
	defer rows.Close()

	var items []shared.OrderItemSnapshot
	for rows.Next() {
		var item shared.OrderItemSnapshot
		if err := rows.Scan(&item.PackageID, &item.Quantity); err != nil {
			return nil, infra.WrapRepoErr("failed to scan order item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to read order items", err)
	}
	return items, nil
}

// MarkPaid is replay-safe: a second notification for the same order keeps
// the original paid_at.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	const q = `
UPDATE orders
SET status = 'PAID', paid_at = COALESCE(paid_at, $2), updated_at = now()
WHERE id = $1 AND status IN ('PENDING', 'PAID')`

	tag, err := r.db.Exec(ctx, q, id, paidAt)
	if err != nil {
		return infra.WrapRepoErr("failed to mark order paid", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("order is not payable", nil, infra.KindConflict)
	}
	return nil
}
