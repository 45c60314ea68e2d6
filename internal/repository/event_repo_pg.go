package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository interface {
	// Insert is idempotent on the event id.
	Insert(ctx context.Context, event domain.Event) error
	Summary(ctx context.Context, now time.Time) (*domain.StatsSummary, error)
}

type PGEventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) EventRepository {
	return &PGEventRepository{db: db}
}

func (r *PGEventRepository) Insert(ctx context.Context, event domain.Event) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO events (event_id, user_id, username, first_name, event_type, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		event.ID, event.UserID, event.Username, event.FirstName, string(event.Type), event.Details, createdAt)
	return err
}

// Summary counts from the start of today and from seven days before it, in the
// timezone of now.
func (r *PGEventRepository) Summary(ctx context.Context, now time.Time) (*domain.StatsSummary, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := today.AddDate(0, 0, -7)

	s := &domain.StatsSummary{RegistrationsByLesson: make(map[string]int)}
	err := r.db.QueryRow(ctx, `SELECT
			(SELECT COUNT(DISTINCT user_id) FROM events WHERE created_at >= $1),
			(SELECT COUNT(DISTINCT user_id) FROM events WHERE created_at >= $2),
			(SELECT COUNT(*) FROM bookings WHERE created_at >= $1),
			(SELECT COUNT(*) FROM bookings WHERE status = $3 AND created_at >= $2)`,
		today, weekAgo, domain.BookingStatusApproved).
		Scan(&s.UsersToday, &s.UsersWeek, &s.BookingsToday, &s.ApprovedWeek)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT lesson_type, COUNT(*) FROM free_lesson_registrations GROUP BY lesson_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lessonType string
			n          int
		)
		if err := rows.Scan(&lessonType, &n); err != nil {
			return nil, err
		}
		s.RegistrationsByLesson[lessonType] = n
	}
	return s, rows.Err()
}

var _ EventRepository = (*PGEventRepository)(nil)
