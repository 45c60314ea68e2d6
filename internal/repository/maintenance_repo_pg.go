package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PurgeResult counts the rows removed for a test user.
type PurgeResult struct {
	UserIDs       []int64 `json:"user_ids"`
	Bookings      int64   `json:"bookings"`
	Registrations int64   `json:"registrations"`
	Events        int64   `json:"events"`
	Sessions      int64   `json:"sessions"`
}

type MaintenanceRepository interface {
	UserIDsByUsername(ctx context.Context, username string) ([]int64, error)
	PurgeUsers(ctx context.Context, userIDs []int64) (*PurgeResult, error)
}

type PGMaintenanceRepository struct {
	db *pgxpool.Pool
}

func NewMaintenanceRepository(db *pgxpool.Pool) MaintenanceRepository {
	return &PGMaintenanceRepository{db: db}
}

func (r *PGMaintenanceRepository) UserIDsByUsername(ctx context.Context, username string) ([]int64, error) {
	username = strings.TrimPrefix(username, "@")
	rows, err := r.db.Query(ctx, `SELECT user_id FROM bookings WHERE username=$1
		UNION SELECT user_id FROM free_lesson_registrations WHERE username=$1
		UNION SELECT user_id FROM events WHERE username=$1
		ORDER BY 1`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PurgeUsers deletes every record of the given users in one transaction.
// Referral usage rows go with their bookings; coupon counters are not rolled back.
func (r *PGMaintenanceRepository) PurgeUsers(ctx context.Context, userIDs []int64) (*PurgeResult, error) {
	res := &PurgeResult{UserIDs: userIDs}
	if len(userIDs) == 0 {
		return res, nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	steps := []struct {
		sql string
		n   *int64
	}{
		{`DELETE FROM bookings WHERE user_id = ANY($1)`, &res.Bookings},
		{`DELETE FROM free_lesson_registrations WHERE user_id = ANY($1)`, &res.Registrations},
		{`DELETE FROM events WHERE user_id = ANY($1)`, &res.Events},
		{`DELETE FROM sessions WHERE user_id = ANY($1)`, &res.Sessions},
	}
	for _, step := range steps {
		cmd, err := tx.Exec(ctx, step.sql, userIDs)
		if err != nil {
			return nil, err
		}
		*step.n = cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

var _ MaintenanceRepository = (*PGMaintenanceRepository)(nil)
