package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/repository"
	"github.com/sirupsen/logrus"
)

type ReferralUseCase interface {
	GenerateCode(ctx context.Context, discountPercent, maxActivations int, creatorID int64) (*domain.Coupon, error)
	Validate(ctx context.Context, code string, userID int64) (*domain.Coupon, error)
	Recent(ctx context.Context, limit int) ([]domain.Coupon, error)
	DeepLink(botUsername, code string) string
	CodeFromStart(param string) (string, bool)
	AllowedDiscounts() []int
}

type ReferralService struct {
	coupons repository.CouponRepository
	cfg     config.ReferralConfig
	log     logrus.FieldLogger
	newCode func() (string, error)
}

func NewReferralService(coupons repository.CouponRepository, cfg config.ReferralConfig, log logrus.FieldLogger) *ReferralService {
	s := &ReferralService{coupons: coupons, cfg: cfg, log: log}
	s.newCode = s.randomCode
	return s
}

// GenerateCode retries until the store accepts a code nobody holds yet.
func (s *ReferralService) GenerateCode(ctx context.Context, discountPercent, maxActivations int, creatorID int64) (*domain.Coupon, error) {
	if !s.allowed(discountPercent) {
		return nil, fmt.Errorf("%w: discount %d%% is not one of %v", domain.ErrValidation, discountPercent, s.cfg.Discounts)
	}
	if maxActivations <= 0 {
		return nil, fmt.Errorf("%w: activations must be positive", domain.ErrValidation)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		coupon := &domain.Coupon{
			Code:            code,
			DiscountPercent: discountPercent,
			MaxActivations:  maxActivations,
			CreatedBy:       creatorID,
		}
		err = s.coupons.Create(ctx, coupon)
		if errors.Is(err, domain.ErrConflict) {
			s.log.WithField("attempt", attempt).Debug("referral code collision")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{"code": coupon.Code, "creator": creatorID}).Info("referral code created")
		return coupon, nil
	}
}

// Validate checks that the coupon exists, has activations left and was not
// redeemed by this user before. The cap is re-checked atomically at redemption.
func (s *ReferralService) Validate(ctx context.Context, code string, userID int64) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrCouponNotFound
	}
	coupon, err := s.coupons.GetActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}
	if coupon.Exhausted() {
		return coupon, domain.ErrCouponExpired
	}
	used, err := s.coupons.UsedBy(ctx, coupon.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return coupon, domain.ErrCouponAlreadyUsed
	}
	return coupon, nil
}

func (s *ReferralService) Recent(ctx context.Context, limit int) ([]domain.Coupon, error) {
	return s.coupons.Recent(ctx, limit)
}

func (s *ReferralService) DeepLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%s", strings.TrimPrefix(botUsername, "@"), s.cfg.StartParameter, code)
}

// CodeFromStart extracts the coupon code from a /start deep-link parameter.
func (s *ReferralService) CodeFromStart(param string) (string, bool) {
	if s.cfg.StartParameter == "" || !strings.HasPrefix(param, s.cfg.StartParameter) {
		return "", false
	}
	code := strings.TrimPrefix(param, s.cfg.StartParameter)
	return code, code != ""
}

func (s *ReferralService) AllowedDiscounts() []int {
	return append([]int(nil), s.cfg.Discounts...)
}

func (s *ReferralService) allowed(percent int) bool {
	for _, d := range s.cfg.Discounts {
		if d == percent {
			return true
		}
	}
	return false
}

func (s *ReferralService) randomCode() (string, error) {
	alphabet := []rune(s.cfg.CodeAlphabet)
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	for i := 0; i < s.cfg.CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		b.WriteRune(alphabet[n.Int64()])
	}
	return b.String(), nil
}

var _ ReferralUseCase = (*ReferralService)(nil)
