package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/cuetime/reservations/internal/domain"
)

type fakeReservationRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID       int64
	reservations map[int64]domain.Reservation
	createErr    error
	updates      int

	// staleRead makes GetByIDForUpdate report pending regardless of the stored state.
	staleRead bool
}

func newFakeReservationRepo(existing ...domain.Reservation) *fakeReservationRepo {
	f := &fakeReservationRepo{reservations: make(map[int64]domain.Reservation)}
	for _, r := range existing {
		f.reservations[r.ID] = r
		if r.ID > f.nextID {
			f.nextID = r.ID
		}
	}
	return f
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeReservationRepo) Create(_ context.Context, in domain.NewReservation) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Reservation{}, f.createErr
	}
	f.nextID++
	r := domain.Reservation{
		ID:          f.nextID,
		Name:        in.Name,
		Email:       in.Email,
		Date:        in.Date,
		Time:        in.Time,
		Duration:    in.Duration,
		Status:      domain.StatusPending,
		RequestedAt: in.RequestedAt,
	}
	f.reservations[r.ID] = r
	return r, nil
}

func (f *fakeReservationRepo) GetByID(_ context.Context, id int64) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeReservationRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Reservation, error) {
	r, err := f.GetByID(ctx, id)
	if err != nil || r == nil {
		return r, err
	}
	if f.staleRead {
		r.Status = domain.StatusPending
	}
	return r, nil
}

func (f *fakeReservationRepo) Update(_ context.Context, id int64, t domain.Transition) (domain.Reservation, error) {
	if err := domain.ValidateTransition(t); err != nil {
		return domain.Reservation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if r.Status != domain.StatusPending {
		return domain.Reservation{}, domain.ErrStatusChanged
	}
	r = domain.Apply(r, t)
	f.reservations[id] = r
	f.updates++
	return r, nil
}

func (f *fakeReservationRepo) ListByDate(_ context.Context, date string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.Date == date {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	requested map[string][]int64
	approved  []domain.Reservation
	rejected  []domain.Reservation

	failFor     map[string]bool
	failOutcome error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{requested: make(map[string][]int64), failFor: make(map[string]bool)}
}

func (n *fakeNotifier) RequestApproval(_ context.Context, r domain.Reservation, recipients []string) []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var errs []error
	for _, to := range recipients {
		if n.failFor[to] {
			errs = append(errs, &domain.NotificationError{Recipient: to, Err: errors.New("smtp unavailable")})
			continue
		}
		n.requested[to] = append(n.requested[to], r.ID)
	}
	return errs
}

func (n *fakeNotifier) NotifyApproved(_ context.Context, r domain.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOutcome != nil {
		return n.failOutcome
	}
	n.approved = append(n.approved, r)
	return nil
}

func (n *fakeNotifier) NotifyRejected(_ context.Context, r domain.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOutcome != nil {
		return n.failOutcome
	}
	n.rejected = append(n.rejected, r)
	return nil
}

type countingRecorder struct {
	mu          sync.Mutex
	submitted   int
	transitions map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{transitions: make(map[string]int)}
}

func (c *countingRecorder) ReservationSubmitted() {
	c.mu.Lock()
	c.submitted++
	c.mu.Unlock()
}

func (c *countingRecorder) TransitionFinished(action domain.Action, result string) {
	c.mu.Lock()
	c.transitions[string(action)+"/"+result]++
	c.mu.Unlock()
}
