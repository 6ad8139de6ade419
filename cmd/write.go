package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-journal/internal/config"
	"github.com/Tiliavir/trivial-journal/internal/editor"
	"github.com/Tiliavir/trivial-journal/internal/logging"
	"github.com/Tiliavir/trivial-journal/internal/session"
)

var (
	writeMessage string
	writePrompt  bool
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a new journal entry",
	Long: `Opens your editor on a scratch file and appends what you wrote to
today's journal file. Saving an empty file, or leaving it unchanged,
discards the entry.`,
	Args: cobra.NoArgs,
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeMessage, "message", "m", "", "Entry text; skips the editor")
	writeCmd.Flags().BoolVar(&writePrompt, "prompt", false, "Type the entry into an inline text box")
}

func runWrite(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	var ed editor.Editor
	switch {
	case cmd.Flags().Changed("message"):
		ed = editor.Static(writeMessage)
	case writePrompt || e.cfg.Editor.Mode == config.ModePrompt:
		ed = editor.Prompt{}
	default:
		ed = &editor.External{Command: editor.ResolveCommand(e.cfg.Editor.Command)}
	}

	w := &session.Writer{Editor: ed, Store: store, Log: logging.For(e.log, "session")}
	res, err := w.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Outcome != session.Saved {
		fmt.Fprintln(out, "Nothing saved.")
		return nil
	}
	fmt.Fprintf(out, "Saved entry to %s\n", filepath.Base(res.Path))
	return nil
}
