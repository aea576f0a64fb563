package database

import (
	"context"
	"database/sql"
	"fmt"

	"wc-analytics/pkg/models"
)

// ProductStore reads order line items.
type ProductStore struct {
	db     *sql.DB
	orders *OrderStore
}

// NewProductStore shares the order store's tables, statuses and row cap.
func NewProductStore(db *sql.DB, orders *OrderStore) *ProductStore {
	return &ProductStore{db: db, orders: orders}
}

// LoadLineItems returns the line items of every qualifying order in window.
func (s *ProductStore) LoadLineItems(ctx context.Context, window models.DateRange) ([]models.LineItem, error) {
	t := s.orders.tables
	q := fmt.Sprintf(`
		SELECT
			items.order_id,
			COALESCE(em.meta_value, ''),
			pid.meta_value,
			items.order_item_name,
			COALESCE(qty.meta_value, '0'),
			COALESCE(lt.meta_value, '0')
		FROM %[3]s items
		INNER JOIN %[1]s p ON p.ID = items.order_id
		INNER JOIN %[4]s pid ON pid.order_item_id = items.order_item_id AND pid.meta_key = '_product_id'
		LEFT JOIN %[4]s qty ON qty.order_item_id = items.order_item_id AND qty.meta_key = '_qty'
		LEFT JOIN %[4]s lt ON lt.order_item_id = items.order_item_id AND lt.meta_key = '_line_total'
		LEFT JOIN %[2]s em ON em.post_id = p.ID AND em.meta_key = '_billing_email'
		WHERE items.order_item_type = 'line_item'
		  AND p.post_type = 'shop_order'
		  AND p.post_status IN (%[5]s)
		  AND p.post_date BETWEEN ? AND ?
		ORDER BY items.order_item_id
		LIMIT ?
	`, t.Posts, t.PostMeta, t.OrderItems, t.ItemMeta, inClause(len(s.orders.statuses)))

	args := stringArgs(s.orders.statuses)
	args = append(args, formatDate(window.Start), formatDate(window.End), s.orders.limit())

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	var out []models.LineItem
	for rows.Next() {
		var (
			it                      models.LineItem
			email, pid, qty, amount string
		)
		if err := rows.Scan(&it.OrderID, &email, &pid, &it.Name, &qty, &amount); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		it.Email = normalizeEmail(email)
		it.ProductID = parseUint(pid)
		it.Quantity = parseInt(qty)
		it.LineTotal = parseMoney(amount)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	return out, nil
}
