package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cuetime/reservations/internal/app"
	"github.com/cuetime/reservations/internal/domain"
)

const (
	paramReservationID = "reservationId"
	paramAdminToken    = "adminToken"
)

// ReservationApprover is the minimal interface needed to approve a reservation.
type ReservationApprover interface {
	Approve(ctx context.Context, id int64, token string) (app.TransitionResult, error)
}

// ReservationRejecter is the minimal interface needed to reject a reservation.
type ReservationRejecter interface {
	Reject(ctx context.Context, id int64) (app.TransitionResult, error)
}

// HandleApprove serves GET /approve/{reservationId}/{adminToken}, the link
// mailed to each administrator.
func HandleApprove(svc ReservationApprover, development bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawID := chi.URLParam(r, paramReservationID)
		id, err := parseReservationID(rawID)
		if err != nil {
			writeNotFoundPage(w, rawID)
			return
		}

		res, err := svc.Approve(r.Context(), id, adminToken(r))
		if err != nil {
			writeDecisionError(w, domain.ActionApprove, rawID, err, development)
			return
		}

		writePage(w, http.StatusOK, pageData{
			Title:         "Reservation Approved",
			Heading:       "Reservation Approved!",
			Tone:          toneSuccess,
			Message:       "Approved by " + res.Reservation.ApprovedBy + ".",
			ReservationID: rawID,
			Reservation:   &res.Reservation,
			Note:          notifiedNote(res, "approved"),
			NoteTone:      notifiedTone(res),
		})
	}
}

// HandleReject serves GET /reject/{reservationId}.
func HandleReject(svc ReservationRejecter, development bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawID := chi.URLParam(r, paramReservationID)
		id, err := parseReservationID(rawID)
		if err != nil {
			writeNotFoundPage(w, rawID)
			return
		}

		res, err := svc.Reject(r.Context(), id)
		if err != nil {
			writeDecisionError(w, domain.ActionReject, rawID, err, development)
			return
		}

		writePage(w, http.StatusOK, pageData{
			Title:         "Reservation Rejected",
			Heading:       "Reservation Rejected",
			Tone:          toneWarning,
			ReservationID: rawID,
			Reservation:   &res.Reservation,
			Note:          notifiedNote(res, "rejected"),
			NoteTone:      notifiedTone(res),
		})
	}
}

func writeDecisionError(w http.ResponseWriter, action domain.Action, rawID string, err error, development bool) {
	var conflict *domain.ConflictError
	switch {
	case errors.Is(err, domain.ErrUnauthorizedAdmin):
		writePage(w, http.StatusForbidden, pageData{
			Title:         "Unauthorized",
			Heading:       "Error: Unauthorized approval attempt.",
			Tone:          toneError,
			ReservationID: rawID,
		})
	case errors.Is(err, domain.ErrReservationNotFound):
		writeNotFoundPage(w, rawID)
	case errors.As(err, &conflict):
		writePage(w, http.StatusBadRequest, pageData{
			Title:         "Reservation Unchanged",
			Heading:       "Unable to " + string(action) + " reservation",
			Tone:          toneWarning,
			Message:       conflict.Error(),
			ReservationID: rawID,
		})
	default:
		writePage(w, http.StatusInternalServerError, pageData{
			Title:         "Error",
			Heading:       "An error occurred during " + actionNoun(action),
			Tone:          toneError,
			Message:       "Please try again later.",
			ReservationID: rawID,
			Details:       details(development, err),
		})
	}
}

func writeNotFoundPage(w http.ResponseWriter, rawID string) {
	writePage(w, http.StatusNotFound, pageData{
		Title:         "Not Found",
		Heading:       "Error: Reservation not found.",
		Tone:          toneError,
		ReservationID: rawID,
	})
}

func parseReservationID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// adminToken returns the token segment decoded once. chi matches on the raw
// path when it differs from the decoded one, so an escaped "/" in an email
// token survives routing and is unescaped here.
func adminToken(r *http.Request) string {
	token := chi.URLParam(r, paramAdminToken)
	if r.URL.RawPath == "" {
		return token
	}
	if decoded, err := url.PathUnescape(token); err == nil {
		return decoded
	}
	return token
}

func notifiedNote(res app.TransitionResult, outcome string) string {
	if res.NotifyErr != nil {
		return "The reservation was " + outcome + " but the user could not be notified by email."
	}
	return "The user has been notified via email."
}

func notifiedTone(res app.TransitionResult) string {
	if res.NotifyErr != nil {
		return toneWarning
	}
	return toneSuccess
}

func actionNoun(action domain.Action) string {
	if action == domain.ActionApprove {
		return "approval"
	}
	return "rejection"
}
