package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/cuetime/reservations/internal/app"
	"github.com/cuetime/reservations/internal/domain"
)

const (
	msgDateRequired  = "Date query parameter is required."
	msgListFailed    = "An error occurred while fetching reservations."
	msgSubmitFailed  = "An error occurred while processing your reservation"
	msgSubmitted     = "Reservation request received. Approval pending."
	msgSubmittedNote = "You will receive a confirmation email once approved."

	maxBodyBytes = 64 << 10
)

// ReservationLister is the minimal interface needed to list a day's reservations.
type ReservationLister interface {
	ListByDate(ctx context.Context, date string) ([]domain.Reservation, error)
}

// ReservationSubmitter is the minimal interface needed to submit a reservation.
type ReservationSubmitter interface {
	Submit(ctx context.Context, in app.SubmitInput) (app.SubmitResult, error)
}

type reservationItem struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Duration   string  `json:"duration"`
	Status     string  `json:"status"`
	ApprovedBy *string `json:"approvedBy"`
}

func newReservationItem(r domain.Reservation) reservationItem {
	item := reservationItem{
		ID:       r.ID,
		Name:     r.Name,
		Email:    r.Email,
		Date:     r.Date,
		Time:     r.Time,
		Duration: r.Duration,
		Status:   r.Status.String(),
	}
	if r.ApprovedBy != "" {
		by := r.ApprovedBy
		item.ApprovedBy = &by
	}
	return item
}

type submitResponse struct {
	Message       string `json:"message"`
	ReservationID int64  `json:"reservationId"`
	Note          string `json:"note"`
}

// HandleListReservations serves GET /reserve?date=YYYY-MM-DD.
func HandleListReservations(svc ReservationLister, development bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, msgDateRequired)
			return
		}

		list, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				writeError(w, http.StatusBadRequest, validationCode(vErr), vErr.Message)
				return
			}
			writeErrorDetails(w, http.StatusInternalServerError, codeInternalError, msgListFailed, details(development, err))
			return
		}

		items := make([]reservationItem, 0, len(list))
		for _, res := range list {
			items = append(items, newReservationItem(res))
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// HandleSubmitReservation serves POST /reserve. It accepts a JSON body or an
// urlencoded form.
func HandleSubmitReservation(svc ReservationSubmitter, development bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		in, err := decodeSubmit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.Submit(r.Context(), in)
		if err != nil {
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				writeError(w, http.StatusBadRequest, validationCode(vErr), vErr.Message)
				return
			}
			writeErrorDetails(w, http.StatusInternalServerError, codeInternalError, msgSubmitFailed, details(development, err))
			return
		}

		writeJSON(w, http.StatusOK, submitResponse{
			Message:       msgSubmitted,
			ReservationID: res.Reservation.ID,
			Note:          msgSubmittedNote,
		})
	}
}

func decodeSubmit(r *http.Request) (app.SubmitInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return app.SubmitInput{}, err
		}
		return app.SubmitInput{
			Name:     r.PostForm.Get("name"),
			Email:    r.PostForm.Get("email"),
			Date:     r.PostForm.Get("date"),
			Time:     r.PostForm.Get("time"),
			Duration: r.PostForm.Get("duration"),
		}, nil
	}

	var in app.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		// An empty body is a submission with every field missing.
		if errors.Is(err, io.EOF) {
			return app.SubmitInput{}, nil
		}
		return app.SubmitInput{}, err
	}
	return in, nil
}

func details(development bool, err error) string {
	if !development || err == nil {
		return ""
	}
	return err.Error()
}
