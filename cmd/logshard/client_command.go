package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"logshard/internal/config"
	"logshard/internal/shardclient"
)

type clientFlags struct {
	command  string
	errorLog string
	interval int
	localDir string
	timeout  int
}

func newClientCommand(ctx *commandContext) *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "client [HOST PORT]",
		Short: "Poll a shard server and append shards to local replicas",
		Long: "Poll http://HOST:PORT/shard every interval and append each shard to a local\n" +
			"file named after the server's log. When a new local file is created the\n" +
			"--command template is run with every %s replaced by the file's absolute path.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected HOST and PORT, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyClientFlags(cmd, cfg, flags, args); err != nil {
				return err
			}
			if err := finalize(cfg); err != nil {
				return err
			}
			if err := cfg.ValidateClient(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := cfg.EnsureClientDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			logger, err := newClientLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			poller, err := shardclient.New(cfg, logger)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return poller.Run(signalCtx)
		},
	}

	cmd.Flags().StringVarP(&flags.command, "command", "c", "", "Command to run for each new local file (%s is the path)")
	cmd.Flags().StringVarP(&flags.errorLog, "error-log", "e", "", "Append diagnostics to this file instead of stderr")
	cmd.Flags().IntVarP(&flags.interval, "interval", "i", 0, "Seconds between polls")
	cmd.Flags().StringVarP(&flags.localDir, "log-directory", "l", "", "Directory for local replicas")
	cmd.Flags().IntVarP(&flags.timeout, "timeout", "t", 0, "Seconds before a request is abandoned")
	return cmd
}

func applyClientFlags(cmd *cobra.Command, cfg *config.Config, flags clientFlags, args []string) error {
	if len(args) == 2 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid port %q", args[1])
		}
		cfg.Client.Host = args[0]
		cfg.Client.Port = port
	}
	changed := cmd.Flags().Changed
	if changed("command") {
		cfg.Client.Command = flags.command
	}
	if changed("error-log") {
		cfg.Client.ErrorLog = flags.errorLog
	}
	if changed("interval") {
		cfg.Client.Interval = flags.interval
	}
	if changed("log-directory") {
		cfg.Client.LocalDir = flags.localDir
	}
	if changed("timeout") {
		cfg.Client.Timeout = flags.timeout
	}
	return nil
}
