package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuetime/reservations/internal/app"
	"github.com/cuetime/reservations/internal/domain"
)

var errStore = errors.New("database is locked")

type stubService struct {
	list    []domain.Reservation
	listErr error

	submitted app.SubmitInput
	submitRes app.SubmitResult
	submitErr error

	approvedID    int64
	approvedToken string
	approveRes    app.TransitionResult
	approveErr    error

	rejectedID int64
	rejectRes  app.TransitionResult
	rejectErr  error
}

func (s *stubService) ListByDate(_ context.Context, date string) ([]domain.Reservation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list, nil
}

func (s *stubService) Submit(_ context.Context, in app.SubmitInput) (app.SubmitResult, error) {
	s.submitted = in
	return s.submitRes, s.submitErr
}

func (s *stubService) Approve(_ context.Context, id int64, token string) (app.TransitionResult, error) {
	s.approvedID = id
	s.approvedToken = token
	return s.approveRes, s.approveErr
}

func (s *stubService) Reject(_ context.Context, id int64) (app.TransitionResult, error) {
	s.rejectedID = id
	return s.rejectRes, s.rejectErr
}

func newStubRouter(svc ReservationAPI, development bool) http.Handler {
	return NewRouter(RouterConfig{
		Service:     svc,
		Logger:      slog.New(slog.DiscardHandler),
		Development: development,
	})
}
