package main

import (
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of chunks stored in the collection",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.coll.Count(cmd.Context())
	if err != nil {
		return err
	}

	printf(cmd, "Total documents in %s: %d\n", a.coll.Name(), n)
	return nil
}
