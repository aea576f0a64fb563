// Package dbtest provides an in-memory SQLite copy of the WooCommerce tables for tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"wc-analytics/pkg/database"
)

// Prefix is the table prefix used by the test schema.
const Prefix = "wp_"

const schema = `
CREATE TABLE wp_posts (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	post_author INTEGER NOT NULL DEFAULT 0,
	post_date DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	post_date_gmt DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	post_content TEXT NOT NULL DEFAULT '',
	post_title TEXT NOT NULL DEFAULT '',
	post_excerpt TEXT NOT NULL DEFAULT '',
	post_status VARCHAR(20) NOT NULL DEFAULT 'publish',
	post_name VARCHAR(200) NOT NULL DEFAULT '',
	to_ping TEXT NOT NULL DEFAULT '',
	pinged TEXT NOT NULL DEFAULT '',
	post_modified DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	post_modified_gmt DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	post_content_filtered TEXT NOT NULL DEFAULT '',
	post_type VARCHAR(20) NOT NULL DEFAULT 'post'
);
CREATE TABLE wp_postmeta (
	meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL DEFAULT 0,
	meta_key VARCHAR(255),
	meta_value TEXT
);
CREATE TABLE wp_users (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	user_login VARCHAR(60) NOT NULL DEFAULT '',
	user_email VARCHAR(100) NOT NULL DEFAULT ''
);
CREATE TABLE wp_usermeta (
	umeta_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL DEFAULT 0,
	meta_key VARCHAR(255),
	meta_value TEXT
);
CREATE TABLE wp_woocommerce_order_items (
	order_item_id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_item_name TEXT NOT NULL,
	order_item_type VARCHAR(200) NOT NULL DEFAULT '',
	order_id INTEGER NOT NULL
);
CREATE TABLE wp_comments (
	comment_ID INTEGER PRIMARY KEY AUTOINCREMENT,
	comment_post_ID INTEGER NOT NULL DEFAULT 0,
	comment_author TEXT NOT NULL DEFAULT '',
	comment_author_email VARCHAR(100) NOT NULL DEFAULT '',
	comment_date DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	comment_date_gmt DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	comment_content TEXT NOT NULL,
	comment_approved VARCHAR(20) NOT NULL DEFAULT '1',
	comment_agent VARCHAR(255) NOT NULL DEFAULT '',
	comment_type VARCHAR(20) NOT NULL DEFAULT 'comment'
);
CREATE TABLE wp_woocommerce_order_itemmeta (
	meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_item_id INTEGER NOT NULL,
	meta_key VARCHAR(255),
	meta_value TEXT
);
`

// DB is a seeded test database.
type DB struct {
	*sql.DB
	t      testing.TB
	Tables database.Tables
}

// Open creates the schema in a fresh in-memory database closed with the test.
func Open(t testing.TB) *DB {
	t.Helper()
	db, _, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), "UTC")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	tables, err := database.NewTables(Prefix)
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	return &DB{DB: db, t: t, Tables: tables}
}

// Order describes a shop_order to seed.
type Order struct {
	Email         string
	Status        string // defaults to wc-completed
	PlacedAt      time.Time
	Total         string
	Tax           string
	ShippingTax   string
	CartTax       string
	PaymentMethod string
	CustomerUser  uint64
	Coupons       []string
	Items         []Item
}

// Item is a line item of a seeded order.
type Item struct {
	ProductID uint64
	Name      string
	Qty       int
	LineTotal string
}

// AddOrder inserts o with its meta and items and returns the order id.
func (d *DB) AddOrder(o Order) uint64 {
	d.t.Helper()
	if o.Status == "" {
		o.Status = "wc-completed"
	}
	date := o.PlacedAt.Format("2006-01-02 15:04:05")
	id := d.insert(`INSERT INTO wp_posts (post_date, post_date_gmt, post_status, post_type) VALUES (?, ?, ?, 'shop_order')`,
		date, date, o.Status)

	meta := map[string]string{
		"_billing_email":      o.Email,
		"_payment_method":     o.PaymentMethod,
		"_order_total":        o.Total,
		"_order_tax":          o.Tax,
		"_order_shipping_tax": o.ShippingTax,
		"_cart_tax":           o.CartTax,
	}
	if o.CustomerUser > 0 {
		meta["_customer_user"] = fmt.Sprint(o.CustomerUser)
	}
	for k, v := range meta {
		if v == "" {
			continue
		}
		d.insert(`INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)`, id, k, v)
	}
	for _, code := range o.Coupons {
		d.insert(`INSERT INTO wp_woocommerce_order_items (order_item_name, order_item_type, order_id) VALUES (?, 'coupon', ?)`, code, id)
	}
	for _, it := range o.Items {
		itemID := d.insert(`INSERT INTO wp_woocommerce_order_items (order_item_name, order_item_type, order_id) VALUES (?, 'line_item', ?)`, it.Name, id)
		d.insert(`INSERT INTO wp_woocommerce_order_itemmeta (order_item_id, meta_key, meta_value) VALUES (?, '_product_id', ?)`, itemID, fmt.Sprint(it.ProductID))
		d.insert(`INSERT INTO wp_woocommerce_order_itemmeta (order_item_id, meta_key, meta_value) VALUES (?, '_qty', ?)`, itemID, fmt.Sprint(it.Qty))
		d.insert(`INSERT INTO wp_woocommerce_order_itemmeta (order_item_id, meta_key, meta_value) VALUES (?, '_line_total', ?)`, itemID, it.LineTotal)
	}
	return id
}

// AddUser inserts a WordPress user and returns its id.
func (d *DB) AddUser(login, email string) uint64 {
	d.t.Helper()
	return d.insert(`INSERT INTO wp_users (user_login, user_email) VALUES (?, ?)`, login, email)
}

// SetPostMeta inserts one raw postmeta row.
func (d *DB) SetPostMeta(postID uint64, key, value string) {
	d.t.Helper()
	d.insert(`INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)`, postID, key, value)
}

func (d *DB) insert(q string, args ...any) uint64 {
	d.t.Helper()
	res, err := d.Exec(q, args...)
	if err != nil {
		d.t.Fatalf("seed %q: %v", q, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		d.t.Fatalf("seed id: %v", err)
	}
	return uint64(id)
}
