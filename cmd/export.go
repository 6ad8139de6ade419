package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-journal/internal/model"
	"github.com/Tiliavir/trivial-journal/internal/timecalc"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export [date|pattern]",
	Short: "Export journal entries to stdout",
	Long: `Writes entries in chronological order as CSV, JSON or Markdown.
Without an argument the whole journal is exported; the argument selects
days the same way as for "tj view".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md")
}

func runExport(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	match, err := timecalc.DateFilter(arg, time.Now())
	if err != nil {
		return err
	}
	switch exportFormat {
	case "csv", "json", "md":
	default:
		return fmt.Errorf("unknown format %q: use csv, json or md", exportFormat)
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	entries := []model.Entry{}
	for entry, err := range store.List(cmd.Context(), match) {
		if w, ok := model.AsWarning(err); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", w)
			continue
		}
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	out := cmd.OutOrStdout()
	switch exportFormat {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "md":
		writeMarkdown(out, entries)
	default:
		writeCSV(out, entries)
	}
	return nil
}

func writeCSV(w io.Writer, entries []model.Entry) {
	fmt.Fprintln(w, "date,time,timestamp,body")
	for _, e := range entries {
		fmt.Fprintf(w, "%s,%s,%s,%s\n",
			csvEscape(e.Date()),
			csvEscape(e.Timestamp.Format("15:04")),
			csvEscape(e.Timestamp.Format(time.RFC3339)),
			csvEscape(e.Body),
		)
	}
}

// writeMarkdown groups entries under one heading per day.
func writeMarkdown(w io.Writer, entries []model.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	var currentDay string
	for _, e := range entries {
		if day := e.Date(); day != currentDay {
			if currentDay != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "## %s\n", day)
			currentDay = day
		}
		fmt.Fprintf(w, "\n**%s** %s\n", e.Timestamp.Format("15:04"), strings.TrimRight(e.Body, "\n"))
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
