package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"logshard/internal/whitelist"
)

func newWhitelistCommand() *cobra.Command {
	whitelistCmd := &cobra.Command{
		Use:         "whitelist",
		Short:       "Whitelist utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	whitelistCmd.AddCommand(&cobra.Command{
		Use:   "check FILE",
		Short: "Parse a whitelist file and flag entries that are not IP addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := whitelist.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if set.Len() == 0 {
				fmt.Fprintln(out, "Whitelist is empty; every client is allowed")
				return nil
			}

			entries := set.Check()
			rows := make([][]string, 0, len(entries))
			invalid := 0
			for _, entry := range entries {
				rows = append(rows, []string{entry.Value, yesNo(entry.Valid)})
				if !entry.Valid {
					invalid++
				}
			}
			fmt.Fprintln(out, renderTable([]string{"Entry", "Valid IP"}, rows, nil))
			fmt.Fprintf(out, "%d entries, %d invalid\n", len(entries), invalid)
			return nil
		},
	})
	return whitelistCmd
}
