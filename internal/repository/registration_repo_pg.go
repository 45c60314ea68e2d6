package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationRepository interface {
	// Upsert keeps one row per (user, lesson type). Re-registration refreshes the
	// email and timestamp and leaves notification_sent untouched.
	Upsert(ctx context.Context, reg *domain.Registration) (created bool, err error)
	Get(ctx context.Context, userID int64, lessonType string) (*domain.Registration, error)
	PendingNotification(ctx context.Context, lessonType string) ([]domain.Registration, error)
	// MarkNotified flips the latch. It reports false if another pass got there first.
	MarkNotified(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, lessonType string) ([]domain.Registration, error)
	CountByLesson(ctx context.Context) (map[string]int, error)
}

type PGRegistrationRepository struct {
	db *pgxpool.Pool
}

func NewRegistrationRepository(db *pgxpool.Pool) RegistrationRepository {
	return &PGRegistrationRepository{db: db}
}

const registrationColumns = `id, user_id, username, first_name, email, lesson_type, lesson_date, registered_at, notification_sent`

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var reg domain.Registration
	if err := row.Scan(&reg.ID, &reg.UserID, &reg.Username, &reg.FirstName, &reg.Email,
		&reg.LessonType, &reg.LessonDate, &reg.RegisteredAt, &reg.NotificationSent); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *PGRegistrationRepository) Upsert(ctx context.Context, reg *domain.Registration) (bool, error) {
	var inserted bool
	row := r.db.QueryRow(ctx, `INSERT INTO free_lesson_registrations (user_id, username, first_name, email, lesson_type, lesson_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, lesson_type) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			lesson_date = EXCLUDED.lesson_date,
			registered_at = now()
		RETURNING `+registrationColumns+`, (xmax = 0)`,
		reg.UserID, reg.Username, reg.FirstName, reg.Email, reg.LessonType, reg.LessonDate)
	if err := row.Scan(&reg.ID, &reg.UserID, &reg.Username, &reg.FirstName, &reg.Email,
		&reg.LessonType, &reg.LessonDate, &reg.RegisteredAt, &reg.NotificationSent, &inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *PGRegistrationRepository) Get(ctx context.Context, userID int64, lessonType string) (*domain.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx, `SELECT `+registrationColumns+` FROM free_lesson_registrations
		WHERE user_id=$1 AND lesson_type=$2`, userID, lessonType))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("registration %d/%s", userID, lessonType))
	}
	return reg, nil
}

func (r *PGRegistrationRepository) PendingNotification(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	return r.query(ctx, `SELECT `+registrationColumns+` FROM free_lesson_registrations
		WHERE lesson_type=$1 AND notification_sent = FALSE ORDER BY registered_at, id`, lessonType)
}

func (r *PGRegistrationRepository) MarkNotified(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE free_lesson_registrations SET notification_sent = TRUE
		WHERE id=$1 AND notification_sent = FALSE`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PGRegistrationRepository) List(ctx context.Context, lessonType string) ([]domain.Registration, error) {
	if lessonType == "" {
		return r.query(ctx, `SELECT `+registrationColumns+` FROM free_lesson_registrations ORDER BY registered_at DESC, id DESC`)
	}
	return r.query(ctx, `SELECT `+registrationColumns+` FROM free_lesson_registrations
		WHERE lesson_type=$1 ORDER BY registered_at DESC, id DESC`, lessonType)
}

func (r *PGRegistrationRepository) CountByLesson(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT lesson_type, COUNT(*) FROM free_lesson_registrations GROUP BY lesson_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			lessonType string
			n          int
		)
		if err := rows.Scan(&lessonType, &n); err != nil {
			return nil, err
		}
		counts[lessonType] = n
	}
	return counts, rows.Err()
}

func (r *PGRegistrationRepository) query(ctx context.Context, sql string, args ...interface{}) ([]domain.Registration, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

var _ RegistrationRepository = (*PGRegistrationRepository)(nil)
