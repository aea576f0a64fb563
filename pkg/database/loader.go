package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// DATETIME layout of WordPress post dates (store local time).
const dateLayout = "2006-01-02 15:04:05"

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Open accepts mariadb://, mysql://, sqlite:// or a native MySQL DSN and returns the
// pool with the driver name used.
func Open(dsn, timezone string) (*sql.DB, string, error) {
	driver, native, err := driverDSN(dsn, timezone)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driver, native)
	if err != nil {
		return nil, "", err
	}
	if driver == "sqlite3" {
		// one connection keeps :memory: databases shared across queries
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, driver, nil
}

func driverDSN(dsn, timezone string) (string, string, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("dsn incomplete (sqlite path)")
		}
		return "sqlite3", path, nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite3", dsn, nil
	}
	mysqlDSN, err := toMySQLDSN(dsn, timezone)
	if err != nil {
		return "", "", err
	}
	return "mysql", mysqlDSN, nil
}

func toMySQLDSN(dsn, timezone string) (string, error) {
	if timezone == "" {
		timezone = "Local"
	}
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("dsn incomplete (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=%s&interpolateParams=true",
			user, pass, host, db, url.QueryEscape(timezone)), nil
	}
	return dsn, nil
}

// Tables holds the prefixed WordPress table names.
type Tables struct {
	Posts      string
	PostMeta   string
	Users      string
	UserMeta   string
	OrderItems string
	ItemMeta   string
	Comments   string
}

// NewTables validates prefix and derives every table name from it.
func NewTables(prefix string) (Tables, error) {
	if !prefixPattern.MatchString(prefix) {
		return Tables{}, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return Tables{
		Posts:      prefix + "posts",
		PostMeta:   prefix + "postmeta",
		Users:      prefix + "users",
		UserMeta:   prefix + "usermeta",
		OrderItems: prefix + "woocommerce_order_items",
		ItemMeta:   prefix + "woocommerce_order_itemmeta",
		Comments:   prefix + "comments",
	}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inClause returns "?,?,?" for n placeholders.
func inClause(n int) string {
	if n <= 0 {
		return "''"
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
