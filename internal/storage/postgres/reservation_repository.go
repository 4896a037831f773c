package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuetime/reservations/internal/domain"
)

const reservationColumns = `id, name, email, "date", "time", duration, status, requested_at, approved_by, approved_at, rejected_at`

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ReservationRepository) Create(ctx context.Context, in domain.NewReservation) (domain.Reservation, error) {
	const stmt = `
INSERT INTO reservations (name, email, "date", "time", duration, status, requested_at)
VALUES ($1, $2, $3, $4, $5, 'pending', $6)
RETURNING ` + reservationColumns

	requestedAt := in.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}

	res, err := scanReservation(conn(ctx, r.pool).QueryRow(ctx, stmt,
		in.Name,
		in.Email,
		in.Date,
		in.Time,
		in.Duration,
		requestedAt,
	))
	if err != nil {
		return domain.Reservation{}, persistErr("insert reservation", err)
	}
	return res, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByIDForUpdate locks the row until the surrounding transaction ends.
func (r *ReservationRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *ReservationRepository) get(ctx context.Context, query string, id int64) (*domain.Reservation, error) {
	res, err := scanReservation(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr("get reservation", err)
	}
	return &res, nil
}

// Update applies t to a pending reservation. The write is guarded on the
// pending status; losing that guard yields ErrStatusChanged.
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
		stmt = `
UPDATE reservations
SET status = 'approved', approved_by = $2, approved_at = $3
WHERE id = $1 AND status = 'pending'
RETURNING ` + reservationColumns
		args = []any{id, f.ApprovedBy, f.ApprovedAt}
	case domain.RejectFields:
		stmt = `
UPDATE reservations
SET status = 'rejected', rejected_at = $2
WHERE id = $1 AND status = 'pending'
RETURNING ` + reservationColumns
		args = []any{id, f.RejectedAt}
	default:
		return domain.Reservation{}, domain.ErrNoFieldsToUpdate
	}

	res, err := scanReservation(conn(ctx, r.pool).QueryRow(ctx, stmt, args...))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Reservation{}, persistErr("update reservation", err)
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if existing == nil {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return domain.Reservation{}, domain.ErrStatusChanged
}

func (r *ReservationRepository) ListByDate(ctx context.Context, date string) ([]domain.Reservation, error) {
	const query = `SELECT ` + reservationColumns + ` FROM reservations WHERE "date" = $1 ORDER BY "time" ASC, id ASC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, date)
	if err != nil {
		return nil, persistErr("list reservations", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Reservation, error) {
		return scanReservation(row)
	})
	if err != nil {
		return nil, persistErr("list reservations", err)
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	return list, nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res        domain.Reservation
		status     string
		approvedBy *string
	)
	if err := row.Scan(
		&res.ID,
		&res.Name,
		&res.Email,
		&res.Date,
		&res.Time,
		&res.Duration,
		&status,
		&res.RequestedAt,
		&approvedBy,
		&res.ApprovedAt,
		&res.RejectedAt,
	); err != nil {
		return domain.Reservation{}, err
	}
	res.Status = domain.Status(status)
	res.RequestedAt = res.RequestedAt.UTC()
	if approvedBy != nil {
		res.ApprovedBy = *approvedBy
	}
	if res.ApprovedAt != nil {
		at := res.ApprovedAt.UTC()
		res.ApprovedAt = &at
	}
	if res.RejectedAt != nil {
		at := res.RejectedAt.UTC()
		res.RejectedAt = &at
	}
	return res, nil
}
