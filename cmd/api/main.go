package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuetime/reservations/internal/config"
)

// state is filled by the root command before any subcommand runs.
type state struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	st := &state{}
	var configFile string

	root := &cobra.Command{
		Use:   "api",
		Short: "Reservation request service",
		Long: `Stores reservation requests, emails administrators approve and reject
links, and tells the requester the outcome.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load(cmd, configFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), st)
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	addServeFlags(root)

	root.AddCommand(
		serveCmd(st),
		migrateCmd(st),
		reservationsCmd(st),
		adminsCmd(st),
		versionCmd(),
	)
	return root
}

func (st *state) load(cmd *cobra.Command, configFile string) error {
	envPath, envErr := config.LoadDotEnv()

	v := viper.New()
	config.Bind(v)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	st.cfg = cfg
	st.logger = newLogger(cmd.ErrOrStderr(), cfg)

	switch {
	case envErr != nil:
		st.logger.Warn("failed to load .env", slog.String("error", envErr.Error()))
	case envPath != "":
		st.logger.Debug("loaded env", slog.String("path", envPath))
	}
	return nil
}

// newLogger writes JSON in production and text in development.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
