package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"logshard/internal/config"
	"logshard/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var ledgerPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List recently shipped shards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := cfg.Server.LedgerPath
			if cmd.Flags().Changed("ledger") {
				if path, err = config.ExpandPath(ledgerPath); err != nil {
					return fmt.Errorf("resolve ledger path: %w", err)
				}
			}
			if path == "" {
				return errors.New("no ledger configured (set server.ledger_path or pass --ledger)")
			}

			store, err := ledger.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			shipments, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(shipments) == 0 {
				fmt.Fprintln(out, "No shipments recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Shipped", "Log", "Start", "End", "Bytes", "Client", "Request"},
				shipmentRows(shipments),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Ledger database (defaults to server.ledger_path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show")
	return cmd
}

func shipmentRows(shipments []ledger.Shipment) [][]string {
	rows := make([][]string, 0, len(shipments))
	for _, s := range shipments {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.ShippedAt.UTC().Format(time.DateTime),
			s.LogName,
			strconv.FormatInt(s.StartOffset, 10),
			strconv.FormatInt(s.EndOffset, 10),
			strconv.Itoa(s.PayloadSize),
			s.ClientIP,
			shortRequestID(s.RequestID),
		})
	}
	return rows
}

func shortRequestID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
