package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	// CreatePending inserts a PENDING booking and, when redemption is set, redeems
	// the coupon in the same transaction. If the user already has an open booking
	// for the course, that booking is returned with created=false and nothing is
	// redeemed.
	CreatePending(ctx context.Context, booking *domain.Booking, redemption *domain.Redemption) (created bool, err error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	LatestByStatus(ctx context.Context, userID int64, statuses ...domain.BookingStatus) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id, userID int64, from, to domain.BookingStatus) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	CountByStatus(ctx context.Context) ([]domain.StatusCount, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, user_id, username, first_name, course_id, status, COALESCE(referral_code, ''), discount_percent, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.Username, &b.FirstName, &b.CourseID, &b.Status,
		&b.ReferralCode, &b.DiscountPercent, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) CreatePending(ctx context.Context, booking *domain.Booking, redemption *domain.Redemption) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var referral *string
	if redemption != nil {
		referral = &redemption.Code
	}

	inserted, err := scanBooking(tx.QueryRow(ctx, `INSERT INTO bookings (user_id, username, first_name, course_id, status, referral_code, discount_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, course_id) WHERE status IN (0, 1) DO NOTHING
		RETURNING `+bookingColumns,
		booking.UserID, booking.Username, booking.FirstName, booking.CourseID, domain.BookingStatusPending, referral, discountOf(redemption)))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings
			WHERE user_id=$1 AND course_id=$2 AND status IN (0, 1)`, booking.UserID, booking.CourseID))
		if err != nil {
			return false, notFound(err, "open booking")
		}
		*booking = *existing
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	if redemption != nil {
		var current int
		err := tx.QueryRow(ctx, `UPDATE coupons SET current_activations = current_activations + 1
			WHERE id=$1 AND is_active AND current_activations < max_activations
			RETURNING current_activations`, redemption.CouponID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrCouponExpired
		}
		if err != nil {
			return false, err
		}

		if _, err := tx.Exec(ctx, `INSERT INTO referral_usage (coupon_id, user_id, booking_id) VALUES ($1, $2, $3)`,
			redemption.CouponID, booking.UserID, inserted.ID); err != nil {
			if isUniqueViolation(err) {
				return false, domain.ErrCouponAlreadyUsed
			}
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	*booking = *inserted
	return true, nil
}

func discountOf(r *domain.Redemption) int {
	if r == nil {
		return 0
	}
	return r.DiscountPercent
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("booking %d", id))
	}
	return b, nil
}

// LatestByStatus returns the most recently created booking of the user in any of
// the given statuses.
func (r *PGBookingRepository) LatestByStatus(ctx context.Context, userID int64, statuses ...domain.BookingStatus) (*domain.Booking, error) {
	codes := make([]int16, 0, len(statuses))
	for _, s := range statuses {
		codes = append(codes, int16(s))
	}
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE user_id=$1 AND status = ANY($2)
		ORDER BY created_at DESC, id DESC LIMIT 1`, userID, codes))
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return b, nil
}

// UpdateStatus applies a transition only while the row is still in from. A zero
// userID skips the ownership check. ErrConflict means the row exists but moved on.
func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id, userID int64, from, to domain.BookingStatus) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now()
		WHERE id=$2 AND status=$3 AND ($4::bigint = 0 OR user_id=$4)
		RETURNING `+bookingColumns, to, id, from, userID))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id=$1 AND ($2::bigint = 0 OR user_id=$2))`, id, userID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return nil, fmt.Errorf("booking %d not in %s: %w", id, from, domain.ErrConflict)
}

func (r *PGBookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.CourseID != 0 {
		args = append(args, filter.CourseID)
		where = append(where, fmt.Sprintf("course_id=$%d", len(args)))
	}
	if filter.Username != "" {
		args = append(args, strings.TrimPrefix(filter.Username, "@"))
		where = append(where, fmt.Sprintf("username=$%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	rows, err := r.db.Query(ctx, `SELECT course_id, status, COUNT(*) FROM bookings GROUP BY course_id, status ORDER BY course_id, status DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.StatusCount
	for rows.Next() {
		var c domain.StatusCount
		if err := rows.Scan(&c.CourseID, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
