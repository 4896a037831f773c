package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cuetime/reservations/internal/app"
)

func adminsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "admins",
		Short: "Show the administrator allow-list and the identity recorded for each",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := app.NewAdminDirectory(st.cfg.AdminEmails, st.cfg.AdminMapping)

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Email", "Recorded As"})
			for _, email := range dir.Recipients() {
				tw.AppendRow(table.Row{email, dir.Identity(email)})
			}
			tw.Render()
			return nil
		},
	}
}
