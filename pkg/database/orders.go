package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wc-analytics/pkg/models"
)

// DefaultStatuses are the qualifying order statuses.
var DefaultStatuses = []string{"wc-completed", "wc-processing"}

// OrderStore reads shop_order posts and their postmeta.
type OrderStore struct {
	db       *sql.DB
	tables   Tables
	statuses []string
	maxRows  int
	loc      *time.Location
}

// NewOrderStore builds a store over db; maxRows caps every query (0 means no cap).
func NewOrderStore(db *sql.DB, tables Tables, statuses []string, maxRows int, loc *time.Location) *OrderStore {
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	if loc == nil {
		loc = time.Local
	}
	return &OrderStore{db: db, tables: tables, statuses: statuses, maxRows: maxRows, loc: loc}
}

func (s *OrderStore) limit() int {
	if s.maxRows <= 0 {
		return int(^uint32(0) >> 1)
	}
	return s.maxRows
}

// LoadOrders returns the qualifying orders placed inside window, oldest first.
func (s *OrderStore) LoadOrders(ctx context.Context, window models.DateRange) ([]models.Order, error) {
	t := s.tables
	q := fmt.Sprintf(`
		SELECT
			p.ID, p.post_date, p.post_status,
			COALESCE(em.meta_value, ''),
			COALESCE(pay.meta_value, ''),
			COALESCE(tot.meta_value, ''),
			COALESCE(tax.meta_value, ''),
			COALESCE(stax.meta_value, ''),
			COALESCE(ctax.meta_value, ''),
			COALESCE(cu.meta_value, '')
		FROM %[1]s p
		LEFT JOIN %[2]s em ON em.post_id = p.ID AND em.meta_key = '_billing_email'
		LEFT JOIN %[2]s pay ON pay.post_id = p.ID AND pay.meta_key = '_payment_method'
		LEFT JOIN %[2]s tot ON tot.post_id = p.ID AND tot.meta_key = '_order_total'
		LEFT JOIN %[2]s tax ON tax.post_id = p.ID AND tax.meta_key = '_order_tax'
		LEFT JOIN %[2]s stax ON stax.post_id = p.ID AND stax.meta_key = '_order_shipping_tax'
		LEFT JOIN %[2]s ctax ON ctax.post_id = p.ID AND ctax.meta_key = '_cart_tax'
		LEFT JOIN %[2]s cu ON cu.post_id = p.ID AND cu.meta_key = '_customer_user'
		WHERE p.post_type = 'shop_order'
		  AND p.post_status IN (%[3]s)
		  AND p.post_date BETWEEN ? AND ?
		ORDER BY p.post_date, p.ID
		LIMIT ?
	`, t.Posts, t.PostMeta, inClause(len(s.statuses)))

	args := stringArgs(s.statuses)
	args = append(args, formatDate(window.Start), formatDate(window.End), s.limit())

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		var o models.Order
		var email, total, tax, stax, ctax, customer string
		placed := wallClock{loc: s.loc}
		if err := rows.Scan(&o.ID, &placed, &o.Status, &email, &o.PaymentMethod,
			&total, &tax, &stax, &ctax, &customer); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.PlacedAt = placed.Time
		o.Email = normalizeEmail(email)
		o.Total = parseMoney(total)
		o.Tax = parseMoney(tax)
		o.ShippingTax = parseMoney(stax)
		o.CartTax = parseMoney(ctax)
		o.CustomerUserID = parseUint(customer)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return out, nil
}

// LifetimeIndex counts every qualifying order per billing email, with no date bound.
// Emails are grouped raw and folded with normalizeEmail so every key matches Order.Email.
func (s *OrderStore) LifetimeIndex(ctx context.Context) (models.LifetimeIndex, error) {
	q := fmt.Sprintf(`
		SELECT pm.meta_value AS email, COUNT(p.ID) AS lifetime_order_count
		FROM %[2]s pm
		INNER JOIN %[1]s p ON p.ID = pm.post_id
		WHERE pm.meta_key = '_billing_email'
		  AND p.post_type = 'shop_order'
		  AND p.post_status IN (%[3]s)
		  AND pm.meta_value <> ''
		GROUP BY pm.meta_value
		LIMIT ?
	`, s.tables.Posts, s.tables.PostMeta, inClause(len(s.statuses)))

	args := append(stringArgs(s.statuses), s.limit())
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lifetime index: %w", err)
	}
	defer rows.Close()

	idx := models.LifetimeIndex{}
	for rows.Next() {
		var (
			email string
			n     int
		)
		if err := rows.Scan(&email, &n); err != nil {
			return nil, fmt.Errorf("scan lifetime: %w", err)
		}
		if email = normalizeEmail(email); email != "" {
			idx[email] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lifetime index: %w", err)
	}
	return idx, nil
}

// ExistingCustomers returns the emails whose first qualifying order is before before.
// A spelling with an earlier order marks the whole normalized email as existing.
func (s *OrderStore) ExistingCustomers(ctx context.Context, before time.Time) (models.CustomerSet, error) {
	q := fmt.Sprintf(`
		SELECT pm.meta_value AS email
		FROM %[1]s p
		INNER JOIN %[2]s pm ON pm.post_id = p.ID AND pm.meta_key = '_billing_email'
		WHERE p.post_type = 'shop_order'
		  AND p.post_status IN (%[3]s)
		  AND pm.meta_value <> ''
		GROUP BY pm.meta_value
		HAVING MIN(p.post_date) < ?
		LIMIT ?
	`, s.tables.Posts, s.tables.PostMeta, inClause(len(s.statuses)))

	args := append(stringArgs(s.statuses), formatDate(before), s.limit())
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("existing customers: %w", err)
	}
	defer rows.Close()

	set := models.CustomerSet{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan existing customer: %w", err)
		}
		if email = normalizeEmail(email); email != "" {
			set[email] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("existing customers: %w", err)
	}
	return set, nil
}

// CountOrders counts the qualifying orders placed inside window, uncapped.
func (s *OrderStore) CountOrders(ctx context.Context, window models.DateRange) (int, error) {
	q := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %[1]s p
		WHERE p.post_type = 'shop_order'
		  AND p.post_status IN (%[2]s)
		  AND p.post_date BETWEEN ? AND ?
	`, s.tables.Posts, inClause(len(s.statuses)))

	args := append(stringArgs(s.statuses), formatDate(window.Start), formatDate(window.End))
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// PeriodCounts counts qualifying orders per billing email inside window.
func (s *OrderStore) PeriodCounts(ctx context.Context, window models.DateRange) (map[string]int, error) {
	q := fmt.Sprintf(`
		SELECT pm.meta_value AS email, COUNT(p.ID) AS period_order_count
		FROM %[1]s p
		INNER JOIN %[2]s pm ON pm.post_id = p.ID AND pm.meta_key = '_billing_email'
		WHERE p.post_type = 'shop_order'
		  AND p.post_status IN (%[3]s)
		  AND p.post_date BETWEEN ? AND ?
		  AND pm.meta_value <> ''
		GROUP BY pm.meta_value
		LIMIT ?
	`, s.tables.Posts, s.tables.PostMeta, inClause(len(s.statuses)))

	args := append(stringArgs(s.statuses), formatDate(window.Start), formatDate(window.End), s.limit())
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("period counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			email string
			n     int
		)
		if err := rows.Scan(&email, &n); err != nil {
			return nil, fmt.Errorf("scan period count: %w", err)
		}
		if email = normalizeEmail(email); email != "" {
			counts[email] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("period counts: %w", err)
	}
	return counts, nil
}
