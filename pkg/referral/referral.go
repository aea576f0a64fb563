// Package referral issues referral coupons and rewards referrers when an order
// placed with their code completes.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wc-analytics/pkg/database"
	"wc-analytics/pkg/models"
)

// Errors returned to callers.
var (
	ErrUserNotFound  = errors.New("referral: user not found")
	ErrOrderNotFound = errors.New("referral: order not found")
)

const (
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeLen  = 8
	rewardCodeLen    = 6
	rewardCodePrefix = "GIFT-"
	fixedCart        = "fixed_cart"
	maxCodeAttempts  = 20
)

// Settings are the amounts shown to friends and referrers.
type Settings struct {
	FriendDiscount decimal.Decimal
	ReferrerReward decimal.Decimal
	RewardValidity time.Duration
}

// DefaultSettings are ten off for the friend, a ten reward for the referrer, valid 60 days.
func DefaultSettings() Settings {
	return Settings{
		FriendDiscount: decimal.NewFromInt(10),
		ReferrerReward: decimal.NewFromInt(10),
		RewardValidity: 60 * 24 * time.Hour,
	}
}

// Store is the coupon registry the service writes to.
type Store interface {
	InTx(ctx context.Context, fn func(tx *database.CouponStore) error) error
}

// Service runs the referral flow.
type Service struct {
	store    Store
	settings Settings
	log      *zap.Logger
	now      func() time.Time
	randCode func(n int) (string, error)
}

// NewService builds a Service over store.
func NewService(store Store, settings Settings, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, settings: settings, log: log, now: time.Now, randCode: randomCode}
}

// EnsureReferralCode returns the user's referral code, creating the friend coupon on
// first use and realigning its amount with the current friend discount afterwards.
func (s *Service) EnsureReferralCode(ctx context.Context, userID uint64) (string, error) {
	var code string
	err := s.store.InTx(ctx, func(tx *database.CouponStore) error {
		if _, err := tx.User(ctx, userID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		existing, err := tx.ReferralCode(ctx, userID)
		if err != nil {
			return err
		}
		if existing != "" {
			code = existing
			return s.syncFriendAmount(ctx, tx, existing)
		}

		code, err = s.uniqueCode(ctx, tx, "", referralCodeLen)
		if err != nil {
			return err
		}
		_, err = tx.CreateCoupon(ctx, models.Coupon{
			Code:              code,
			DiscountType:      fixedCart,
			Amount:            s.settings.FriendDiscount,
			IndividualUse:     true,
			UsageLimit:        0,
			UsageLimitPerUser: 1,
			ReferrerUserID:    userID,
		}, s.now())
		if err != nil {
			return err
		}
		return tx.SetReferralCode(ctx, userID, code)
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) syncFriendAmount(ctx context.Context, tx *database.CouponStore, code string) error {
	c, err := tx.CouponByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.Amount.Equal(s.settings.FriendDiscount) {
		return nil
	}
	s.log.Info("referral coupon amount updated",
		zap.String("code", code),
		zap.String("from", c.Amount.String()),
		zap.String("to", s.settings.FriendDiscount.String()))
	return tx.SetCouponAmount(ctx, c.ID, s.settings.FriendDiscount)
}

// Reward describes a coupon issued to a referrer.
type Reward struct {
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
	ReferrerID uint64          `json:"referrer_id"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// ProcessCompletedOrder issues at most one reward per order. It returns nil, nil when
// the order was already processed or used no referral code.
func (s *Service) ProcessCompletedOrder(ctx context.Context, orderID uint64) (*Reward, error) {
	var reward *Reward
	err := s.store.InTx(ctx, func(tx *database.CouponStore) error {
		order, err := tx.ReferralOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Processed || len(order.CouponCodes) == 0 {
			return nil
		}

		for _, applied := range order.CouponCodes {
			c, err := tx.CouponByCode(ctx, applied)
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if c.ReferrerUserID == 0 || c.ReferrerUserID == order.CustomerUserID {
				continue
			}
			referrer, err := tx.User(ctx, c.ReferrerUserID)
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			reward, err = s.issueReward(ctx, tx, referrer)
			if err != nil {
				return err
			}
			if err := tx.MarkRewardProcessed(ctx, orderID); err != nil {
				return err
			}
			note := fmt.Sprintf("Referral Reward (%s) of amount %s sent to: %s", reward.Code, reward.Amount.String(), referrer.Login)
			if err := tx.AddOrderNote(ctx, orderID, note, s.now()); err != nil {
				return err
			}
			s.log.Info("referral reward sent",
				zap.Uint64("order_id", orderID),
				zap.String("code", reward.Code),
				zap.String("amount", reward.Amount.String()),
				zap.String("referrer", referrer.Login))
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reward, nil
}

func (s *Service) issueReward(ctx context.Context, tx *database.CouponStore, referrer models.User) (*Reward, error) {
	code, err := s.uniqueCode(ctx, tx, rewardCodePrefix, rewardCodeLen)
	if err != nil {
		return nil, err
	}
	now := s.now()
	expires := now.Add(s.settings.RewardValidity)
	_, err = tx.CreateCoupon(ctx, models.Coupon{
		Code:              code,
		DiscountType:      fixedCart,
		Amount:            s.settings.ReferrerReward,
		IndividualUse:     true,
		UsageLimit:        1,
		EmailRestrictions: []string{referrer.Email},
		ExpiresAt:         &expires,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := tx.AppendEarnedCoupon(ctx, referrer.ID, code); err != nil {
		return nil, err
	}
	return &Reward{Code: code, Amount: s.settings.ReferrerReward, ReferrerID: referrer.ID, ExpiresAt: expires}, nil
}

// EarnedCoupon is a reward coupon with its current status.
type EarnedCoupon struct {
	Code      string          `json:"code"`
	Amount    decimal.Decimal `json:"amount"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Status    string          `json:"status"`
}

// EarnedCoupons lists the user's rewards, newest first. Codes whose coupon was
// deleted are skipped.
func (s *Service) EarnedCoupons(ctx context.Context, userID uint64) ([]EarnedCoupon, error) {
	var out []EarnedCoupon
	err := s.store.InTx(ctx, func(tx *database.CouponStore) error {
		if _, err := tx.User(ctx, userID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		codes, err := tx.EarnedCoupons(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()
		for i := len(codes) - 1; i >= 0; i-- {
			c, err := tx.CouponByCode(ctx, codes[i])
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, EarnedCoupon{Code: c.Code, Amount: c.Amount, ExpiresAt: c.ExpiresAt, Status: c.Status(now)})
		}
		return nil
	})
	return out, err
}

func (s *Service) uniqueCode(ctx context.Context, tx *database.CouponStore, prefix string, n int) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		body, err := s.randCode(n)
		if err != nil {
			return "", err
		}
		code := prefix + body
		_, err = tx.CouponIDByCode(ctx, code)
		if errors.Is(err, database.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("referral: no free coupon code after %d attempts", maxCodeAttempts)
}

func randomCode(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random code: %w", err)
		}
		b[i] = codeAlphabet[k.Int64()]
	}
	return string(b), nil
}
