package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuetime/reservations/internal/clock"
	"github.com/cuetime/reservations/internal/domain"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *fakeReservationRepo, notifier *fakeNotifier, opts ...ServiceOption) *ReservationService {
	admins := NewAdminDirectory(
		[]string{"alice@example.com", "bob@example.com"},
		map[string]string{"alice@example.com": "Alice"},
	)
	return NewReservationService(repo, admins, notifier, clock.Fixed(testNow), opts...)
}

func validInput() SubmitInput {
	return SubmitInput{Name: "A", Email: "a@x.com", Date: "2024-01-01", Time: "10:00", Duration: "60"}
}

func TestReservationService_Submit(t *testing.T) {
	t.Parallel()

	t.Run("creates pending reservation and notifies every admin", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo()
		notifier := newFakeNotifier()
		rec := newCountingRecorder()
		svc := newTestService(repo, notifier, WithRecorder(rec))

		res, err := svc.Submit(context.Background(), validInput())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		r := res.Reservation
		if r.ID == 0 {
			t.Fatalf("expected id to be assigned")
		}
		if r.Status != domain.StatusPending {
			t.Fatalf("expected status pending, got %s", r.Status)
		}
		if !r.RequestedAt.Equal(testNow) {
			t.Fatalf("expected requestedAt %v, got %v", testNow, r.RequestedAt)
		}
		for _, admin := range []string{"alice@example.com", "bob@example.com"} {
			if ids := notifier.requested[admin]; len(ids) != 1 || ids[0] != r.ID {
				t.Fatalf("expected %s notified about %d, got %v", admin, r.ID, ids)
			}
		}
		if len(res.NotifyErrs) != 0 {
			t.Fatalf("expected no notification errors, got %v", res.NotifyErrs)
		}
		if rec.submitted != 1 {
			t.Fatalf("expected submitted counter 1, got %d", rec.submitted)
		}
	})

	t.Run("admin notification failure does not fail submission", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo()
		notifier := newFakeNotifier()
		notifier.failFor["alice@example.com"] = true
		notifier.failFor["bob@example.com"] = true
		svc := newTestService(repo, notifier)

		res, err := svc.Submit(context.Background(), validInput())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(res.NotifyErrs) != 2 {
			t.Fatalf("expected 2 notification errors, got %d", len(res.NotifyErrs))
		}
		stored, _ := repo.GetByID(context.Background(), res.Reservation.ID)
		if stored == nil || stored.Status != domain.StatusPending {
			t.Fatalf("expected pending reservation to be stored, got %+v", stored)
		}
	})

	t.Run("store failure is returned", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo()
		repo.createErr = &domain.PersistenceError{Op: "insert reservation", Err: errors.New("disk full")}
		notifier := newFakeNotifier()
		svc := newTestService(repo, notifier)

		_, err := svc.Submit(context.Background(), validInput())
		var pErr *domain.PersistenceError
		if !errors.As(err, &pErr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if len(notifier.requested) != 0 {
			t.Fatalf("expected no admin notifications after store failure")
		}
	})

	validation := []struct {
		name    string
		mutate  func(*SubmitInput)
		field   string
		message string
	}{
		{name: "missing email", mutate: func(in *SubmitInput) { in.Email = "" }, field: "email", message: msgFieldsRequired},
		{name: "blank name", mutate: func(in *SubmitInput) { in.Name = "   " }, field: "name", message: msgFieldsRequired},
		{name: "missing duration", mutate: func(in *SubmitInput) { in.Duration = "" }, field: "duration", message: msgFieldsRequired},
		{name: "invalid email", mutate: func(in *SubmitInput) { in.Email = "not-an-email" }, field: "email", message: msgInvalidEmail},
		{name: "email without tld", mutate: func(in *SubmitInput) { in.Email = "a@x" }, field: "email", message: msgInvalidEmail},
		{name: "malformed date", mutate: func(in *SubmitInput) { in.Date = "01/02/2024" }, field: "date", message: msgInvalidDate},
		{name: "missing wins over invalid email", mutate: func(in *SubmitInput) { in.Email = "bad"; in.Time = "" }, field: "time", message: msgFieldsRequired},
	}
	for _, tt := range validation {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeReservationRepo()
			svc := newTestService(repo, newFakeNotifier())

			in := validInput()
			tt.mutate(&in)
			_, err := svc.Submit(context.Background(), in)

			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, vErr.Field)
			}
			if vErr.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, vErr.Message)
			}
			if len(repo.reservations) != 0 {
				t.Fatalf("expected no record created, got %d", len(repo.reservations))
			}
		})
	}
}

func TestReservationService_Approve(t *testing.T) {
	t.Parallel()

	pending := func(id int64) domain.Reservation {
		return domain.Reservation{ID: id, Name: "A", Email: "a@x.com", Date: "2024-01-01", Time: "10:00", Duration: "60", Status: domain.StatusPending, RequestedAt: testNow}
	}

	t.Run("approves pending and notifies requester", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(pending(1))
		notifier := newFakeNotifier()
		svc := newTestService(repo, notifier)

		res, err := svc.Approve(context.Background(), 1, "alice@example.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		r := res.Reservation
		if r.Status != domain.StatusApproved {
			t.Fatalf("expected approved, got %s", r.Status)
		}
		if r.ApprovedBy != "Alice" {
			t.Fatalf("expected approvedBy Alice, got %q", r.ApprovedBy)
		}
		if r.ApprovedAt == nil || !r.ApprovedAt.Equal(testNow) {
			t.Fatalf("expected approvedAt %v, got %v", testNow, r.ApprovedAt)
		}
		if r.RejectedAt != nil {
			t.Fatalf("expected rejectedAt unset")
		}
		if len(notifier.approved) != 1 || notifier.approved[0].ID != 1 {
			t.Fatalf("expected one approval email, got %v", notifier.approved)
		}
	})

	t.Run("unauthorized token never touches the store", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(pending(1))
		svc := newTestService(repo, newFakeNotifier())

		_, err := svc.Approve(context.Background(), 1, "eve@example.com")
		if err != domain.ErrUnauthorizedAdmin {
			t.Fatalf("expected ErrUnauthorizedAdmin, got %v", err)
		}
		_, err = svc.Approve(context.Background(), 999, "eve@example.com")
		if err != domain.ErrUnauthorizedAdmin {
			t.Fatalf("expected ErrUnauthorizedAdmin for missing id, got %v", err)
		}
		if repo.updates != 0 {
			t.Fatalf("expected no updates, got %d", repo.updates)
		}
	})

	t.Run("missing reservation", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(newFakeReservationRepo(), newFakeNotifier())

		_, err := svc.Approve(context.Background(), 42, "alice@example.com")
		if !errors.Is(err, domain.ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
	})

	t.Run("second approval is a conflict without a second email", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(pending(1))
		notifier := newFakeNotifier()
		svc := newTestService(repo, notifier)

		if _, err := svc.Approve(context.Background(), 1, "alice@example.com"); err != nil {
			t.Fatalf("expected first approval to succeed, got %v", err)
		}
		_, err := svc.Approve(context.Background(), 1, "bob@example.com")

		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if err.Error() != "reservation already approved by Alice" {
			t.Fatalf("unexpected conflict message %q", err.Error())
		}
		stored, _ := repo.GetByID(context.Background(), 1)
		if stored.ApprovedBy != "Alice" {
			t.Fatalf("expected approvedBy unchanged, got %q", stored.ApprovedBy)
		}
		if len(notifier.approved) != 1 {
			t.Fatalf("expected exactly one approval email, got %d", len(notifier.approved))
		}
	})

	t.Run("notification failure keeps the approval", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(pending(1))
		notifier := newFakeNotifier()
		notifier.failOutcome = errors.New("smtp unavailable")
		svc := newTestService(repo, notifier)

		res, err := svc.Approve(context.Background(), 1, "bob@example.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.NotifyErr == nil {
			t.Fatalf("expected notification error to be reported")
		}
		stored, _ := repo.GetByID(context.Background(), 1)
		if stored.Status != domain.StatusApproved || stored.ApprovedBy != "bob@example.com" {
			t.Fatalf("expected approval committed, got %+v", stored)
		}
	})

	t.Run("guarded write lost to a concurrent decision", func(t *testing.T) {
		t.Parallel()
		rejected := pending(1)
		at := testNow
		rejected.Status = domain.StatusRejected
		rejected.RejectedAt = &at
		repo := newFakeReservationRepo(rejected)
		repo.staleRead = true
		rec := newCountingRecorder()
		svc := newTestService(repo, newFakeNotifier(), WithRecorder(rec))

		_, err := svc.Approve(context.Background(), 1, "alice@example.com")
		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if err.Error() != "cannot approve a rejected reservation" {
			t.Fatalf("unexpected conflict message %q", err.Error())
		}
		if rec.transitions["approve/conflict"] != 1 {
			t.Fatalf("expected conflict recorded, got %v", rec.transitions)
		}
	})
}

func TestReservationService_Reject(t *testing.T) {
	t.Parallel()

	base := domain.Reservation{ID: 5, Name: "A", Email: "a@x.com", Date: "2024-01-01", Time: "10:00", Duration: "60", Status: domain.StatusPending, RequestedAt: testNow}

	t.Run("rejects pending and notifies requester", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(base)
		notifier := newFakeNotifier()
		svc := newTestService(repo, notifier)

		res, err := svc.Reject(context.Background(), 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Reservation.Status != domain.StatusRejected {
			t.Fatalf("expected rejected, got %s", res.Reservation.Status)
		}
		if res.Reservation.RejectedAt == nil || !res.Reservation.RejectedAt.Equal(testNow) {
			t.Fatalf("expected rejectedAt %v, got %v", testNow, res.Reservation.RejectedAt)
		}
		if res.Reservation.ApprovedBy != "" || res.Reservation.ApprovedAt != nil {
			t.Fatalf("expected approval fields unset")
		}
		if len(notifier.rejected) != 1 {
			t.Fatalf("expected one rejection email, got %d", len(notifier.rejected))
		}
	})

	t.Run("then approve is refused", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(base)
		svc := newTestService(repo, newFakeNotifier())

		if _, err := svc.Reject(context.Background(), 5); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := svc.Approve(context.Background(), 5, "alice@example.com")
		if err == nil || err.Error() != "cannot approve a rejected reservation" {
			t.Fatalf("expected rejected conflict, got %v", err)
		}
		stored, _ := repo.GetByID(context.Background(), 5)
		if stored.Status != domain.StatusRejected || stored.ApprovedAt != nil {
			t.Fatalf("expected state unchanged, got %+v", stored)
		}
	})

	t.Run("approved cannot be rejected", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(base)
		svc := newTestService(repo, newFakeNotifier())

		if _, err := svc.Approve(context.Background(), 5, "bob@example.com"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := svc.Reject(context.Background(), 5)
		if err == nil || err.Error() != "cannot reject an approved reservation" {
			t.Fatalf("expected approved conflict, got %v", err)
		}
	})

	t.Run("double reject", func(t *testing.T) {
		t.Parallel()
		repo := newFakeReservationRepo(base)
		notifier := newFakeNotifier()
		svc := newTestService(repo, notifier)

		if _, err := svc.Reject(context.Background(), 5); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := svc.Reject(context.Background(), 5)
		if err == nil || err.Error() != "reservation already rejected" {
			t.Fatalf("expected already rejected conflict, got %v", err)
		}
		if len(notifier.rejected) != 1 {
			t.Fatalf("expected one rejection email, got %d", len(notifier.rejected))
		}
	})

	t.Run("missing reservation", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(newFakeReservationRepo(), newFakeNotifier())
		if _, err := svc.Reject(context.Background(), 404); !errors.Is(err, domain.ErrReservationNotFound) {
			t.Fatalf("expected ErrReservationNotFound, got %v", err)
		}
	})
}

func TestReservationService_ConcurrentDecisionsOnlyOneWins(t *testing.T) {
	t.Parallel()

	repo := newFakeReservationRepo(domain.Reservation{ID: 1, Status: domain.StatusPending, Email: "a@x.com"})
	notifier := newFakeNotifier()
	svc := newTestService(repo, notifier)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = svc.Approve(context.Background(), 1, "alice@example.com")
			} else {
				_, err = svc.Reject(context.Background(), 1)
			}
			var conflict *domain.ConflictError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.As(err, &conflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if conflicts != workers-1 {
		t.Fatalf("expected %d conflicts, got %d (others: %v)", workers-1, conflicts, others)
	}
	if repo.updates != 1 {
		t.Fatalf("expected one store update, got %d", repo.updates)
	}
	if len(notifier.approved)+len(notifier.rejected) != 1 {
		t.Fatalf("expected exactly one requester email, got %d", len(notifier.approved)+len(notifier.rejected))
	}
}

func TestReservationService_ListByDate(t *testing.T) {
	t.Parallel()

	repo := newFakeReservationRepo(
		domain.Reservation{ID: 1, Date: "2024-01-01", Time: "14:00", Status: domain.StatusPending},
		domain.Reservation{ID: 2, Date: "2024-01-01", Time: "09:00", Status: domain.StatusApproved, ApprovedBy: "Alice"},
		domain.Reservation{ID: 3, Date: "2024-01-02", Time: "10:00", Status: domain.StatusPending},
	)
	svc := newTestService(repo, newFakeNotifier())

	list, err := svc.ListByDate(context.Background(), "2024-01-01")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[1].ID != 1 {
		t.Fatalf("expected ids [2 1] ordered by time, got %+v", list)
	}

	empty, err := svc.ListByDate(context.Background(), "2030-05-05")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", empty)
	}

	for _, bad := range []string{"", "2024-1-1", "tomorrow"} {
		var vErr *domain.ValidationError
		if _, err := svc.ListByDate(context.Background(), bad); !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for %q, got %v", bad, err)
		}
	}
}

func TestReservationService_Get(t *testing.T) {
	t.Parallel()

	repo := newFakeReservationRepo(domain.Reservation{ID: 9, Status: domain.StatusPending})
	svc := newTestService(repo, newFakeNotifier())

	r, err := svc.Get(context.Background(), 9)
	if err != nil || r.ID != 9 {
		t.Fatalf("expected reservation 9, got %+v (%v)", r, err)
	}
	if _, err := svc.Get(context.Background(), 10); err != domain.ErrReservationNotFound {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}
