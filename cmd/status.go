package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a summary of the journal",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	now := time.Now()

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	st, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	today, _, err := store.Day(cmd.Context(), now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Journal: %s\n", store.Root())
	if st.Entries == 0 {
		fmt.Fprintln(out, "No entries yet.")
		return nil
	}
	fmt.Fprintf(out, "  Entries: %d on %d %s\n", st.Entries, st.Days, plural(st.Days, "day", "days"))
	fmt.Fprintf(out, "  First: %s\n", st.First)
	fmt.Fprintf(out, "  Last: %s\n", st.Last)
	if st.Warnings > 0 {
		fmt.Fprintf(out, "  Warnings: %d (run \"tj view\" for details)\n", st.Warnings)
	}
	fmt.Fprintf(out, "Today: %d %s.\n", len(today), plural(len(today), "entry", "entries"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
