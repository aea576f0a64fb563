package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wc-analytics/pkg/models"
)

// Meta keys shared with WooCommerce and the referral plugin.
const (
	metaReferralCode    = "my_unique_referral_code"
	metaEarnedCoupons   = "earned_referral_coupons"
	metaRewardProcessed = "_referral_reward_processed"
	metaReferrerUserID  = "_referrer_user_id"
)

// CouponStore reads and writes shop_coupon posts, user meta and the order reward flag.
type CouponStore struct {
	db     *sql.DB
	q      querier
	tables Tables
	loc    *time.Location
}

// NewCouponStore builds a registry over db.
func NewCouponStore(db *sql.DB, tables Tables, loc *time.Location) *CouponStore {
	if loc == nil {
		loc = time.Local
	}
	return &CouponStore{db: db, q: db, tables: tables, loc: loc}
}

// InTx runs fn against a store bound to one transaction.
func (s *CouponStore) InTx(ctx context.Context, fn func(tx *CouponStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	bound := &CouponStore{db: s.db, q: tx, tables: s.tables, loc: s.loc}
	if err := fn(bound); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CouponIDByCode returns the id of the published coupon with code.
func (s *CouponStore) CouponIDByCode(ctx context.Context, code string) (uint64, error) {
	q := fmt.Sprintf(`
		SELECT ID FROM %s
		WHERE post_type = 'shop_coupon' AND post_status = 'publish' AND UPPER(post_title) = UPPER(?)
		ORDER BY ID DESC
		LIMIT 1
	`, s.tables.Posts)
	var id uint64
	err := s.q.QueryRowContext(ctx, q, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("coupon id %s: %w", code, err)
	}
	return id, nil
}

// CouponByCode loads a coupon and its meta.
func (s *CouponStore) CouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	id, err := s.CouponIDByCode(ctx, code)
	if err != nil {
		return models.Coupon{}, err
	}
	meta, err := s.postMeta(ctx, id)
	if err != nil {
		return models.Coupon{}, err
	}

	c := models.Coupon{
		ID:                id,
		Code:              strings.ToUpper(code),
		DiscountType:      meta["discount_type"],
		Amount:            parseMoney(meta["coupon_amount"]),
		IndividualUse:     meta["individual_use"] == "yes",
		UsageLimit:        parseInt(meta["usage_limit"]),
		UsageLimitPerUser: parseInt(meta["usage_limit_per_user"]),
		UsageCount:        parseInt(meta["usage_count"]),
		ReferrerUserID:    parseUint(meta[metaReferrerUserID]),
	}
	if emails, err := unserializeStrings(meta["customer_email"]); err == nil {
		c.EmailRestrictions = emails
	}
	if ts := parseInt(meta["date_expires"]); ts > 0 {
		exp := time.Unix(int64(ts), 0).In(s.loc)
		c.ExpiresAt = &exp
	}
	return c, nil
}

// CreateCoupon inserts c as a published shop_coupon and returns its id.
func (s *CouponStore) CreateCoupon(ctx context.Context, c models.Coupon, now time.Time) (uint64, error) {
	q := fmt.Sprintf(`
		INSERT INTO %s (post_author, post_date, post_date_gmt, post_content, post_title, post_excerpt,
			post_status, post_name, to_ping, pinged, post_modified, post_modified_gmt,
			post_content_filtered, post_type)
		VALUES (?, ?, ?, '', ?, '', 'publish', ?, '', '', ?, ?, '', 'shop_coupon')
	`, s.tables.Posts)

	local := formatDate(now.In(s.loc))
	gmt := formatDate(now.UTC())
	res, err := s.q.ExecContext(ctx, q, c.ReferrerUserID, local, gmt, c.Code, strings.ToLower(c.Code), local, gmt)
	if err != nil {
		return 0, fmt.Errorf("insert coupon %s: %w", c.Code, err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert coupon %s: %w", c.Code, err)
	}
	id := uint64(lastID)

	emails, err := serializeStrings(c.EmailRestrictions)
	if err != nil {
		return 0, err
	}
	meta := map[string]string{
		"discount_type":        c.DiscountType,
		"coupon_amount":        c.Amount.String(),
		"individual_use":       yesNo(c.IndividualUse),
		"usage_limit":          strconv.Itoa(c.UsageLimit),
		"usage_limit_per_user": strconv.Itoa(c.UsageLimitPerUser),
		"usage_count":          "0",
		"customer_email":       emails,
		"date_expires":         "",
	}
	if c.ExpiresAt != nil {
		meta["date_expires"] = strconv.FormatInt(c.ExpiresAt.Unix(), 10)
	}
	if c.ReferrerUserID > 0 {
		meta[metaReferrerUserID] = strconv.FormatUint(c.ReferrerUserID, 10)
	}
	for _, k := range sortedKeys(meta) {
		if err := s.setMeta(ctx, s.tables.PostMeta, "post_id", id, k, meta[k]); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// SetCouponAmount rewrites coupon_amount.
func (s *CouponStore) SetCouponAmount(ctx context.Context, couponID uint64, amount decimal.Decimal) error {
	return s.setMeta(ctx, s.tables.PostMeta, "post_id", couponID, "coupon_amount", amount.String())
}

// User loads a WordPress user.
func (s *CouponStore) User(ctx context.Context, userID uint64) (models.User, error) {
	q := fmt.Sprintf(`SELECT ID, user_login, user_email FROM %s WHERE ID = ?`, s.tables.Users)
	var u models.User
	err := s.q.QueryRowContext(ctx, q, userID).Scan(&u.ID, &u.Login, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("user %d: %w", userID, err)
	}
	return u, nil
}

// ReferralCode returns the user's code, or "" when none was generated yet.
func (s *CouponStore) ReferralCode(ctx context.Context, userID uint64) (string, error) {
	v, _, err := s.userMeta(ctx, userID, metaReferralCode)
	return v, err
}

// SetReferralCode stores the user's code.
func (s *CouponStore) SetReferralCode(ctx context.Context, userID uint64, code string) error {
	return s.setMeta(ctx, s.tables.UserMeta, "user_id", userID, metaReferralCode, code)
}

// EarnedCoupons returns the reward codes of a user, oldest first.
func (s *CouponStore) EarnedCoupons(ctx context.Context, userID uint64) ([]string, error) {
	v, ok, err := s.userMeta(ctx, userID, metaEarnedCoupons)
	if err != nil || !ok {
		return nil, err
	}
	codes, err := unserializeStrings(v)
	if err != nil {
		// unreadable meta is treated as no rewards
		return nil, nil
	}
	return codes, nil
}

// AppendEarnedCoupon adds code to the user's reward list.
func (s *CouponStore) AppendEarnedCoupon(ctx context.Context, userID uint64, code string) error {
	codes, err := s.EarnedCoupons(ctx, userID)
	if err != nil {
		return err
	}
	v, err := serializeStrings(append(codes, code))
	if err != nil {
		return err
	}
	return s.setMeta(ctx, s.tables.UserMeta, "user_id", userID, metaEarnedCoupons, v)
}

// ReferralOrder loads the buyer, applied coupon codes and reward flag of an order.
func (s *CouponStore) ReferralOrder(ctx context.Context, orderID uint64) (models.ReferralOrder, error) {
	var exists int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE ID = ? AND post_type = 'shop_order'`, s.tables.Posts)
	if err := s.q.QueryRowContext(ctx, q, orderID).Scan(&exists); err != nil {
		return models.ReferralOrder{}, fmt.Errorf("order %d: %w", orderID, err)
	}
	if exists == 0 {
		return models.ReferralOrder{}, ErrNotFound
	}

	meta, err := s.postMeta(ctx, orderID)
	if err != nil {
		return models.ReferralOrder{}, err
	}
	o := models.ReferralOrder{
		ID:             orderID,
		CustomerUserID: parseUint(meta["_customer_user"]),
		Processed:      meta[metaRewardProcessed] != "",
	}

	cq := fmt.Sprintf(`
		SELECT order_item_name FROM %s
		WHERE order_id = ? AND order_item_type = 'coupon'
		ORDER BY order_item_id
	`, s.tables.OrderItems)
	rows, err := s.q.QueryContext(ctx, cq, orderID)
	if err != nil {
		return models.ReferralOrder{}, fmt.Errorf("order %d coupons: %w", orderID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return models.ReferralOrder{}, fmt.Errorf("scan order coupon: %w", err)
		}
		o.CouponCodes = append(o.CouponCodes, code)
	}
	return o, rows.Err()
}

// MarkRewardProcessed flags the order so the reward is issued once.
func (s *CouponStore) MarkRewardProcessed(ctx context.Context, orderID uint64) error {
	return s.setMeta(ctx, s.tables.PostMeta, "post_id", orderID, metaRewardProcessed, "yes")
}

// AddOrderNote stores note as a private WooCommerce order note.
func (s *CouponStore) AddOrderNote(ctx context.Context, orderID uint64, note string, now time.Time) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (comment_post_ID, comment_author, comment_author_email, comment_date, comment_date_gmt,
			comment_content, comment_approved, comment_agent, comment_type)
		VALUES (?, 'WooCommerce', '', ?, ?, ?, '1', 'WooCommerce', 'order_note')
	`, s.tables.Comments)
	if _, err := s.q.ExecContext(ctx, q, orderID, formatDate(now.In(s.loc)), formatDate(now.UTC()), note); err != nil {
		return fmt.Errorf("order %d note: %w", orderID, err)
	}
	return nil
}

// OrderNotes returns the order notes of an order, oldest first.
func (s *CouponStore) OrderNotes(ctx context.Context, orderID uint64) ([]string, error) {
	q := fmt.Sprintf(`
		SELECT comment_content FROM %s
		WHERE comment_post_ID = ? AND comment_type = 'order_note'
		ORDER BY comment_ID
	`, s.tables.Comments)
	rows, err := s.q.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %d notes: %w", orderID, err)
	}
	defer rows.Close()
	var notes []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *CouponStore) postMeta(ctx context.Context, postID uint64) (map[string]string, error) {
	q := fmt.Sprintf(`SELECT meta_key, COALESCE(meta_value, '') FROM %s WHERE post_id = ? ORDER BY meta_id`, s.tables.PostMeta)
	rows, err := s.q.QueryContext(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("post meta %d: %w", postID, err)
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan post meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *CouponStore) userMeta(ctx context.Context, userID uint64, key string) (string, bool, error) {
	q := fmt.Sprintf(`SELECT COALESCE(meta_value, '') FROM %s WHERE user_id = ? AND meta_key = ? ORDER BY umeta_id DESC LIMIT 1`, s.tables.UserMeta)
	var v string
	err := s.q.QueryRowContext(ctx, q, userID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("user meta %s: %w", key, err)
	}
	return v, true, nil
}

// setMeta updates or inserts one meta row of a posts/users meta table.
func (s *CouponStore) setMeta(ctx context.Context, table, idCol string, id uint64, key, value string) error {
	var n int
	cq := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ? AND meta_key = ?`, table, idCol)
	if err := s.q.QueryRowContext(ctx, cq, id, key).Scan(&n); err != nil {
		return fmt.Errorf("meta %s: %w", key, err)
	}
	var err error
	if n > 0 {
		uq := fmt.Sprintf(`UPDATE %s SET meta_value = ? WHERE %s = ? AND meta_key = ?`, table, idCol)
		_, err = s.q.ExecContext(ctx, uq, value, id, key)
	} else {
		iq := fmt.Sprintf(`INSERT INTO %s (%s, meta_key, meta_value) VALUES (?, ?, ?)`, table, idCol)
		_, err = s.q.ExecContext(ctx, iq, id, key, value)
	}
	if err != nil {
		return fmt.Errorf("meta %s: %w", key, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
