package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CouponRepository interface {
	// Create returns domain.ErrConflict when the code is already taken.
	Create(ctx context.Context, coupon *domain.Coupon) error
	GetActiveByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Recent(ctx context.Context, limit int) ([]domain.Coupon, error)
	UsedBy(ctx context.Context, couponID, userID int64) (bool, error)
}

type PGCouponRepository struct {
	db *pgxpool.Pool
}

func NewCouponRepository(db *pgxpool.Pool) CouponRepository {
	return &PGCouponRepository{db: db}
}

const couponColumns = `id, code, name, discount_percent, max_activations, current_activations, created_by, is_active, created_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.DiscountPercent, &c.MaxActivations,
		&c.CurrentActivations, &c.CreatedBy, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	created, err := scanCoupon(r.db.QueryRow(ctx, `INSERT INTO coupons (code, name, discount_percent, max_activations, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+couponColumns,
		coupon.Code, coupon.Name, coupon.DiscountPercent, coupon.MaxActivations, coupon.CreatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("coupon code %s: %w", coupon.Code, domain.ErrConflict)
		}
		return err
	}
	*coupon = *created
	return nil
}

func (r *PGCouponRepository) GetActiveByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code=$1 AND is_active`, code))
	if err != nil {
		return nil, notFound(err, "coupon")
	}
	return c, nil
}

func (r *PGCouponRepository) Recent(ctx context.Context, limit int) ([]domain.Coupon, error) {
	rows, err := r.db.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

func (r *PGCouponRepository) UsedBy(ctx context.Context, couponID, userID int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM referral_usage WHERE coupon_id=$1 AND user_id=$2)`, couponID, userID).Scan(&used)
	return used, err
}

var _ CouponRepository = (*PGCouponRepository)(nil)
