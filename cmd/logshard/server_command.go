package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"logshard/internal/config"
	"logshard/internal/logging"
	"logshard/internal/shardserver"
)

type serverFlags struct {
	accessLogDir string
	logDir       string
	offset       int64
	whitelist    string
	bind         string
	compress     bool
	ledger       string
}

func newServerCommand(ctx *commandContext) *cobra.Command {
	var flags serverFlags

	cmd := &cobra.Command{
		Use:   "server [PORT]",
		Short: "Serve shards of today's log over HTTP",
		Long: "Serve GET /shard on PORT. Each request returns the next complete lines of\n" +
			"YYYY-MM-DD.log from the log directory, prefixed by the file's name.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyServerFlags(cmd, cfg, flags, args); err != nil {
				return err
			}
			if err := finalize(cfg); err != nil {
				return err
			}
			if err := cfg.EnsureServerDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			logger, err := newLogger(cfg, "stderr")
			if err != nil {
				return err
			}
			srv, err := shardserver.New(cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := srv.Run(signalCtx); err != nil {
				return err
			}
			logger.Info("shard server stopped", logging.String(logging.FieldEventType, "server_stopped"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.accessLogDir, "access-log-directory", "a", "", "Directory for YYYY-MM-DD.access.log files")
	cmd.Flags().StringVarP(&flags.logDir, "log-directory", "l", "", "Directory holding the YYYY-MM-DD.log files")
	cmd.Flags().Int64VarP(&flags.offset, "offset", "o", 0, "Starting byte offset into the first log file")
	cmd.Flags().StringVarP(&flags.whitelist, "whitelist", "w", "", "File of allowed client IPs, one per line")
	cmd.Flags().StringVar(&flags.bind, "bind", "", "Address to listen on")
	cmd.Flags().BoolVar(&flags.compress, "compress", false, "Gzip responses for clients that accept it")
	cmd.Flags().StringVar(&flags.ledger, "ledger", "", "SQLite file recording every shipped shard")
	return cmd
}

func applyServerFlags(cmd *cobra.Command, cfg *config.Config, flags serverFlags, args []string) error {
	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.Server.Port = port
	}
	changed := cmd.Flags().Changed
	if changed("access-log-directory") {
		cfg.Server.AccessLogDir = flags.accessLogDir
	}
	if changed("log-directory") {
		cfg.Server.LogDir = flags.logDir
	}
	if changed("offset") {
		cfg.Server.StartOffset = flags.offset
	}
	if changed("whitelist") {
		cfg.Server.Whitelist = flags.whitelist
	}
	if changed("bind") {
		cfg.Server.Bind = flags.bind
	}
	if changed("compress") {
		cfg.Server.Compress = flags.compress
	}
	if changed("ledger") {
		cfg.Server.LedgerPath = flags.ledger
	}
	return nil
}
