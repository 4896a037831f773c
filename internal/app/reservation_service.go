package app

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cuetime/reservations/internal/clock"
	"github.com/cuetime/reservations/internal/domain"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, in domain.NewReservation) (domain.Reservation, error)
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Reservation, error)
	Update(ctx context.Context, id int64, t domain.Transition) (domain.Reservation, error)
	ListByDate(ctx context.Context, date string) ([]domain.Reservation, error)
}

// Notifier delivers workflow emails. RequestApproval sends one message per
// recipient and returns the failures only.
type Notifier interface {
	RequestApproval(ctx context.Context, r domain.Reservation, recipients []string) []error
	NotifyApproved(ctx context.Context, r domain.Reservation) error
	NotifyRejected(ctx context.Context, r domain.Reservation) error
}

// Recorder receives workflow counters.
type Recorder interface {
	ReservationSubmitted()
	TransitionFinished(action domain.Action, result string)
}

const (
	ResultOK           = "ok"
	ResultNotFound     = "not_found"
	ResultConflict     = "conflict"
	ResultUnauthorized = "unauthorized"
	ResultError        = "error"
)

const (
	msgFieldsRequired = "All fields are required."
	msgInvalidEmail   = "Please enter a valid email address."
	msgInvalidDate    = "Invalid date format. Please use YYYY-MM-DD."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type ReservationService struct {
	repo     ReservationRepository
	admins   *AdminDirectory
	notifier Notifier
	clock    clock.Clock
	validate *validator.Validate
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
}

type ServiceOption func(*ReservationService)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *ReservationService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *ReservationService) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithRecorder(r Recorder) ServiceOption {
	return func(s *ReservationService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func NewReservationService(repo ReservationRepository, admins *AdminDirectory, notifier Notifier, clk clock.Clock, opts ...ServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:     repo,
		admins:   admins,
		notifier: notifier,
		clock:    clk,
		validate: newValidator(),
		logger:   slog.New(slog.DiscardHandler),
		tracer:   noop.NewTracerProvider().Tracer(""),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		return domain.ValidDate(fl.Field().String())
	})
	return v
}

type SubmitInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,mailbox"`
	Date     string `json:"date" validate:"required,calendar_date"`
	Time     string `json:"time" validate:"required"`
	Duration string `json:"duration" validate:"required"`
}

type SubmitResult struct {
	Reservation domain.Reservation
	// NotifyErrs holds one entry per administrator that could not be reached.
	NotifyErrs []error
}

// Submit stores a pending reservation and asks every administrator to
// decide on it. Notification failures never fail the submission.
func (s *ReservationService) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.Submit")
	defer span.End()

	in = SubmitInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Date:     strings.TrimSpace(in.Date),
		Time:     strings.TrimSpace(in.Time),
		Duration: strings.TrimSpace(in.Duration),
	}
	if err := s.validateSubmit(in); err != nil {
		return SubmitResult{}, err
	}

	r, err := s.repo.Create(ctx, domain.NewReservation{
		Name:        in.Name,
		Email:       in.Email,
		Date:        in.Date,
		Time:        in.Time,
		Duration:    in.Duration,
		RequestedAt: s.clock.Now(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create reservation")
		return SubmitResult{}, err
	}
	span.SetAttributes(attribute.Int64("reservation.id", r.ID))
	s.recorder.ReservationSubmitted()
	s.logger.InfoContext(ctx, "reservation submitted",
		slog.Int64("reservation_id", r.ID),
		slog.String("date", r.Date),
		slog.String("time", r.Time),
	)

	// The record is committed; delivery must not depend on the caller staying connected.
	notifyCtx := context.WithoutCancel(ctx)
	errs := s.notifier.RequestApproval(notifyCtx, r, s.admins.Recipients())
	for _, nerr := range errs {
		s.logger.WarnContext(ctx, "admin notification failed",
			slog.Int64("reservation_id", r.ID),
			slog.String("error", nerr.Error()),
		)
	}

	return SubmitResult{Reservation: r, NotifyErrs: errs}, nil
}

func (s *ReservationService) validateSubmit(in SubmitInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return &domain.ValidationError{Field: fe.Field(), Rule: domain.RuleRequired, Message: msgFieldsRequired}
		}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "mailbox":
		return &domain.ValidationError{Field: fe.Field(), Rule: domain.RuleEmail, Message: msgInvalidEmail}
	case "calendar_date":
		return &domain.ValidationError{Field: fe.Field(), Rule: domain.RuleDate, Message: msgInvalidDate}
	default:
		return &domain.ValidationError{Field: fe.Field(), Rule: fe.Tag(), Message: fe.Error()}
	}
}

func (s *ReservationService) Get(ctx context.Context, id int64) (domain.Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if r == nil {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *r, nil
}

// ListByDate returns the reservations of one day ordered by time.
func (s *ReservationService) ListByDate(ctx context.Context, date string) ([]domain.Reservation, error) {
	if date == "" {
		return nil, &domain.ValidationError{Field: "date", Rule: domain.RuleRequired, Message: "date is required"}
	}
	if !domain.ValidDate(date) {
		return nil, &domain.ValidationError{Field: "date", Rule: domain.RuleDate, Message: msgInvalidDate}
	}

	ctx, span := s.tracer.Start(ctx, "ReservationService.ListByDate", trace.WithAttributes(attribute.String("reservation.date", date)))
	defer span.End()

	list, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if list == nil {
		list = []domain.Reservation{}
	}
	return list, nil
}

// TransitionResult is the committed outcome of an approve or reject.
// NotifyErr is set when the requester could not be told; the transition
// stands regardless.
type TransitionResult struct {
	Reservation domain.Reservation
	NotifyErr   error
}

// Approve resolves token to an administrator identity and approves the
// pending reservation id on their behalf.
func (s *ReservationService) Approve(ctx context.Context, id int64, token string) (TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.Approve", trace.WithAttributes(attribute.Int64("reservation.id", id)))
	defer span.End()

	identity, err := s.admins.Authorize(token)
	if err != nil {
		s.logger.WarnContext(ctx, "unauthorized approval attempt",
			slog.Int64("reservation_id", id),
			slog.String("token", token),
		)
		s.recorder.TransitionFinished(domain.ActionApprove, ResultUnauthorized)
		return TransitionResult{}, err
	}

	return s.transition(ctx, span, id, domain.ActionApprove, func(now time.Time) domain.Transition {
		return domain.ApproveFields{ApprovedBy: identity, ApprovedAt: now}
	})
}

// Reject rejects the pending reservation id.
func (s *ReservationService) Reject(ctx context.Context, id int64) (TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.Reject", trace.WithAttributes(attribute.Int64("reservation.id", id)))
	defer span.End()

	return s.transition(ctx, span, id, domain.ActionReject, func(now time.Time) domain.Transition {
		return domain.RejectFields{RejectedAt: now}
	})
}

func (s *ReservationService) transition(ctx context.Context, span trace.Span, id int64, action domain.Action, build func(time.Time) domain.Transition) (TransitionResult, error) {
	now := s.clock.Now()
	var updated domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrReservationNotFound
		}
		if err := domain.CheckTransition(*current, action); err != nil {
			return err
		}

		updated, err = s.repo.Update(txCtx, id, build(now))
		return err
	})
	if errors.Is(err, domain.ErrStatusChanged) {
		// Another decision landed between the read and the guarded write.
		if current, getErr := s.repo.GetByID(ctx, id); getErr == nil && current != nil {
			if conflict := domain.CheckTransition(*current, action); conflict != nil {
				err = conflict
			}
		}
	}
	if err != nil {
		result := transitionResult(err)
		s.recorder.TransitionFinished(action, result)
		if result == ResultError {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(action))
			s.logger.ErrorContext(ctx, "reservation transition failed",
				slog.Int64("reservation_id", id),
				slog.String("action", string(action)),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "reservation transition refused",
				slog.Int64("reservation_id", id),
				slog.String("action", string(action)),
				slog.String("reason", err.Error()),
			)
		}
		return TransitionResult{}, err
	}

	s.recorder.TransitionFinished(action, ResultOK)
	s.logger.InfoContext(ctx, "reservation "+string(updated.Status),
		slog.Int64("reservation_id", id),
		slog.String("approved_by", updated.ApprovedBy),
	)

	notifyCtx := context.WithoutCancel(ctx)
	var notifyErr error
	switch action {
	case domain.ActionApprove:
		notifyErr = s.notifier.NotifyApproved(notifyCtx, updated)
	case domain.ActionReject:
		notifyErr = s.notifier.NotifyRejected(notifyCtx, updated)
	}
	if notifyErr != nil {
		s.logger.WarnContext(ctx, "requester notification failed",
			slog.Int64("reservation_id", id),
			slog.String("email", updated.Email),
			slog.String("error", notifyErr.Error()),
		)
	}

	return TransitionResult{Reservation: updated, NotifyErr: notifyErr}, nil
}

func transitionResult(err error) string {
	var conflict *domain.ConflictError
	switch {
	case errors.Is(err, domain.ErrReservationNotFound):
		return ResultNotFound
	case errors.Is(err, domain.ErrUnauthorizedAdmin):
		return ResultUnauthorized
	case errors.As(err, &conflict), errors.Is(err, domain.ErrStatusChanged):
		return ResultConflict
	default:
		return ResultError
	}
}

type nopRecorder struct{}

func (nopRecorder) ReservationSubmitted()                    {}
func (nopRecorder) TransitionFinished(domain.Action, string) {}
