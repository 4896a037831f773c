package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuetime/reservations/internal/domain"
)

// timestamps are stored as UTC RFC 3339 text
const timeLayout = time.RFC3339Nano

const reservationColumns = `id, name, email, "date", "time", duration, status, requested_at, approved_by, approved_at, rejected_at`

type reservationRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Email       string         `db:"email"`
	Date        string         `db:"date"`
	Time        string         `db:"time"`
	Duration    string         `db:"duration"`
	Status      string         `db:"status"`
	RequestedAt string         `db:"requested_at"`
	ApprovedBy  sql.NullString `db:"approved_by"`
	ApprovedAt  sql.NullString `db:"approved_at"`
	RejectedAt  sql.NullString `db:"rejected_at"`
}

func (r reservationRow) toDomain() (domain.Reservation, error) {
	requestedAt, err := time.Parse(timeLayout, r.RequestedAt)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("parse requested_at: %w", err)
	}
	approvedAt, err := parseNullTime(r.ApprovedAt)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("parse approved_at: %w", err)
	}
	rejectedAt, err := parseNullTime(r.RejectedAt)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("parse rejected_at: %w", err)
	}
	return domain.Reservation{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Date:        r.Date,
		Time:        r.Time,
		Duration:    r.Duration,
		Status:      domain.Status(r.Status),
		RequestedAt: requestedAt,
		ApprovedBy:  r.ApprovedBy.String,
		ApprovedAt:  approvedAt,
		RejectedAt:  rejectedAt,
	}, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type ReservationRepository struct {
	db *sqlx.DB
}

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func (r *ReservationRepository) Create(ctx context.Context, in domain.NewReservation) (domain.Reservation, error) {
	const stmt = `
INSERT INTO reservations (name, email, "date", "time", duration, status, requested_at)
VALUES (?, ?, ?, ?, ?, 'pending', ?)`

	requestedAt := in.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}

	res, err := conn(ctx, r.db).ExecContext(ctx, stmt,
		in.Name,
		in.Email,
		in.Date,
		in.Time,
		in.Duration,
		formatTime(requestedAt),
	)
	if err != nil {
		return domain.Reservation{}, persistErr("insert reservation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Reservation{}, persistErr("insert reservation", err)
	}

	created, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if created == nil {
		return domain.Reservation{}, persistErr("insert reservation", errors.New("row vanished after insert"))
	}
	return *created, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var row reservationRow
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr("get reservation", err)
	}
	res, err := row.toDomain()
	if err != nil {
		return nil, persistErr("get reservation", err)
	}
	return &res, nil
}

// GetByIDForUpdate reads inside the caller's transaction, which already
// holds the database write lock.
func (r *ReservationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *ReservationRepository) Update(ctx context.Context, id int64, t domain.Transition) (domain.Reservation, error) {
	if err := domain.ValidateTransition(t); err != nil {
		return domain.Reservation{}, err
	}

	var (
		stmt string
		args []any
	)
	switch f := t.(type) {
	case domain.ApproveFields:
		stmt = `UPDATE reservations SET status = 'approved', approved_by = ?, approved_at = ? WHERE id = ? AND status = 'pending'`
		args = []any{f.ApprovedBy, formatTime(f.ApprovedAt), id}
	case domain.RejectFields:
		stmt = `UPDATE reservations SET status = 'rejected', rejected_at = ? WHERE id = ? AND status = 'pending'`
		args = []any{formatTime(f.RejectedAt), id}
	default:
		return domain.Reservation{}, domain.ErrNoFieldsToUpdate
	}

	res, err := conn(ctx, r.db).ExecContext(ctx, stmt, args...)
	if err != nil {
		return domain.Reservation{}, persistErr("update reservation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Reservation{}, persistErr("update reservation", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if current == nil {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if n == 0 {
		return domain.Reservation{}, domain.ErrStatusChanged
	}
	return *current, nil
}

func (r *ReservationRepository) ListByDate(ctx context.Context, date string) ([]domain.Reservation, error) {
	var rows []reservationRow
	err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows,
		`SELECT `+reservationColumns+` FROM reservations WHERE "date" = ? ORDER BY "time" ASC, id ASC`, date)
	if err != nil {
		return nil, persistErr("list reservations", err)
	}

	list := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		res, err := row.toDomain()
		if err != nil {
			return nil, persistErr("list reservations", err)
		}
		list = append(list, res)
	}
	return list, nil
}
