package notification

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuetime/reservations/internal/domain"
)

const (
	KindAdminRequest = "admin_request"
	KindApproved     = "approved"
	KindRejected     = "rejected"
)

// Recorder receives one event per delivery attempt.
type Recorder interface {
	NotificationSent(kind string, ok bool)
}

type Config struct {
	// BaseURL prefixes the approve and reject links, e.g. "https://book.example.com".
	BaseURL string
	// Timeout bounds each delivery attempt. Zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// Notifier renders the workflow emails and hands them to a Sender.
type Notifier struct {
	sender   Sender
	baseURL  string
	timeout  time.Duration
	logger   *slog.Logger
	recorder Recorder
}

type Option func(*Notifier)

func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(n *Notifier) {
		if r != nil {
			n.recorder = r
		}
	}
}

func NewNotifier(sender Sender, cfg Config, opts ...Option) *Notifier {
	n := &Notifier{
		sender:   sender,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		logger:   slog.New(slog.DiscardHandler),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ApproveLink is the link an administrator follows to approve r. The token
// is the administrator's own allow-list entry.
func ApproveLink(baseURL string, id int64, token string) string {
	return strings.TrimRight(baseURL, "/") + "/approve/" + strconv.FormatInt(id, 10) + "/" + url.PathEscape(token)
}

func RejectLink(baseURL string, id int64) string {
	return strings.TrimRight(baseURL, "/") + "/reject/" + strconv.FormatInt(id, 10)
}

// RequestApproval sends every recipient its own approve/reject links in
// parallel and waits for all attempts. The returned slice holds one
// *domain.NotificationError per failed recipient.
func (n *Notifier) RequestApproval(ctx context.Context, r domain.Reservation, recipients []string) []error {
	errs := make([]error, len(recipients))

	var wg sync.WaitGroup
	for i, to := range recipients {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			msg, err := adminRequestTemplate.render(to, adminRequestData{
				Reservation: r,
				ApproveLink: ApproveLink(n.baseURL, r.ID, to),
				RejectLink:  RejectLink(n.baseURL, r.ID),
			})
			if err == nil {
				err = n.send(ctx, msg)
			}
			n.record(ctx, KindAdminRequest, r.ID, to, err)
			if err != nil {
				errs[i] = &domain.NotificationError{Recipient: to, Err: err}
			}
		}(i, to)
	}
	wg.Wait()

	failed := errs[:0]
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return failed
}

func (n *Notifier) NotifyApproved(ctx context.Context, r domain.Reservation) error {
	return n.notifyRequester(ctx, KindApproved, approvedTemplate, r)
}

func (n *Notifier) NotifyRejected(ctx context.Context, r domain.Reservation) error {
	return n.notifyRequester(ctx, KindRejected, rejectedTemplate, r)
}

func (n *Notifier) notifyRequester(ctx context.Context, kind string, tmpl mailTemplate, r domain.Reservation) error {
	msg, err := tmpl.render(r.Email, outcomeData{Reservation: r})
	if err == nil {
		err = n.send(ctx, msg)
	}
	n.record(ctx, kind, r.ID, r.Email, err)
	if err != nil {
		return &domain.NotificationError{Recipient: r.Email, Err: err}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, msg *Message) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	return n.sender.Send(ctx, msg)
}

func (n *Notifier) record(ctx context.Context, kind string, id int64, to string, err error) {
	n.recorder.NotificationSent(kind, err == nil)
	if err != nil {
		n.logger.WarnContext(ctx, "notification failed",
			slog.String("kind", kind),
			slog.Int64("reservation_id", id),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return
	}
	n.logger.InfoContext(ctx, "notification sent",
		slog.String("kind", kind),
		slog.Int64("reservation_id", id),
		slog.String("to", to),
	)
}

type nopRecorder struct{}

func (nopRecorder) NotificationSent(string, bool) {}
