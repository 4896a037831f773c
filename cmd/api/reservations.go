package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cuetime/reservations/internal/app"
	"github.com/cuetime/reservations/internal/clock"
	"github.com/cuetime/reservations/internal/domain"
)

func reservationsCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{Use: "reservations", Short: "Inspect stored reservations"}
	cmd.AddCommand(reservationsListCmd(st))
	cmd.AddCommand(reservationsShowCmd(st))
	return cmd
}

func reservationsListCmd(st *state) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the reservations of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), st, func(ctx context.Context, svc *app.ReservationService) error {
				list, err := svc.ListByDate(ctx, date)
				if err != nil {
					return err
				}
				writeReservationTable(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to list (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func reservationsShowCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("%w: %q", domain.ErrInvalidID, args[0])
			}
			return withService(cmd.Context(), st, func(ctx context.Context, svc *app.ReservationService) error {
				r, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				writeReservationTable(cmd.OutOrStdout(), []domain.Reservation{r})
				return nil
			})
		},
	}
}

// withService opens the store for a read-only command. Nothing is sent, so
// the service gets no notifier.
func withService(ctx context.Context, st *state, fn func(context.Context, *app.ReservationService) error) error {
	if err := st.cfg.ValidateStore(); err != nil {
		return err
	}
	openCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	db, err := openStore(openCtx, st.cfg.DB)
	if err != nil {
		return err
	}
	defer db.close()

	admins := app.NewAdminDirectory(st.cfg.AdminEmails, st.cfg.AdminMapping)
	svc := app.NewReservationService(db.repo, admins, nil, clock.System(), app.WithLogger(st.logger))
	return fn(ctx, svc)
}

func writeReservationTable(w io.Writer, list []domain.Reservation) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Time", "Duration", "Name", "Email", "Status", "Approved By", "Decided At"})
	for _, r := range list {
		tw.AppendRow(table.Row{r.ID, r.Time, r.Duration, r.Name, r.Email, r.Status, r.ApprovedBy, decidedAt(r)})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(list), ""})
	tw.Render()
}

func decidedAt(r domain.Reservation) string {
	switch {
	case r.ApprovedAt != nil:
		return r.ApprovedAt.UTC().Format("2006-01-02 15:04:05")
	case r.RejectedAt != nil:
		return r.RejectedAt.UTC().Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
