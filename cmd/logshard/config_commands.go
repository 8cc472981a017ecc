package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"logshard/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set server.log_dir on the log host or client.host on the collector before running.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			source := ctx.configPath
			if !ctx.configExists {
				source += " (not found, defaults)"
			}
			fmt.Fprintf(out, "Config path: %s\n", source)
			fmt.Fprintln(out, renderTable([]string{"Key", "Value"}, configRows(cfg), nil))
			return nil
		},
	}
}

func configRows(cfg *config.Config) [][]string {
	return [][]string{
		{"server.port", strconv.Itoa(cfg.Server.Port)},
		{"server.bind", cfg.Server.Bind},
		{"server.log_dir", cfg.Server.LogDir},
		{"server.access_log_dir", cfg.Server.AccessLogDir},
		{"server.start_offset", strconv.FormatInt(cfg.Server.StartOffset, 10)},
		{"server.whitelist", orDash(cfg.Server.Whitelist)},
		{"server.compress", yesNo(cfg.Server.Compress)},
		{"server.ledger_path", orDash(cfg.Server.LedgerPath)},
		{"server.access_log_retention_days", strconv.Itoa(cfg.Server.AccessLogRetentionDays)},
		{"client.host", orDash(cfg.Client.Host)},
		{"client.port", strconv.Itoa(cfg.Client.Port)},
		{"client.command", orDash(cfg.Client.Command)},
		{"client.error_log", orDash(cfg.Client.ErrorLog)},
		{"client.interval", strconv.Itoa(cfg.Client.Interval)},
		{"client.timeout", strconv.Itoa(cfg.Client.Timeout)},
		{"client.local_dir", cfg.Client.LocalDir},
		{"logging.format", cfg.Logging.Format},
		{"logging.level", cfg.Logging.Level},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := finalize(cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if cfg.Client.Host != "" {
				if err := cfg.ValidateClient(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
