package cmd

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-journal/internal/config"
	"github.com/Tiliavir/trivial-journal/internal/display"
	"github.com/Tiliavir/trivial-journal/internal/session"
	"github.com/Tiliavir/trivial-journal/internal/timecalc"
)

var viewNoPager bool

var viewCmd = &cobra.Command{
	Use:   "view [date|pattern]",
	Short: "Read the journal in chronological order",
	Long: `Shows every entry, oldest first. Restrict the output to one day with
YYYY-MM-DD, MM-DD (this year), "today" or "yesterday", or to several days
with a pattern such as 2024-01-* or 2024-0[1-3]-*.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&viewNoPager, "no-pager", false, "Print to stdout instead of the pager")
}

func runView(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	match, err := timecalc.DateFilter(arg, time.Now())
	if err != nil {
		return err
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styles := display.NewStyles(e.cfg.View.Color)
	var d display.Display = &display.Plain{Out: out, Styles: styles}
	if usePager(e.cfg.View.Pager, viewNoPager, out) {
		d = &display.Pager{Styles: styles}
	}
	return session.View(cmd.Context(), store, d, match)
}

// usePager decides between the pager and plain output.
func usePager(mode string, disabled bool, out io.Writer) bool {
	if disabled {
		return false
	}
	switch mode {
	case config.PagerAlways:
		return true
	case config.PagerNever:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
