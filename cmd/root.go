package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-journal/internal/config"
	"github.com/Tiliavir/trivial-journal/internal/logging"
	"github.com/Tiliavir/trivial-journal/internal/storage"
)

var (
	configFlag string
	dirFlag    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tj",
	Short: "Trivial Journal – a minimal CLI journal",
	Long: `tj is a single-binary, file-based journal for the command line.
Entries are stored as plain text, one file per day, in ~/.tj/journal/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.tj/config.yaml, or $TJ_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "Journal directory, overrides journal.dir")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log recovery and debug details to stderr")

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

// env is what every journal command needs: the effective configuration and
// a logger on stderr.
type env struct {
	cfgPath string
	cfg     config.Config
	log     *slog.Logger
}

func loadEnv(cmd *cobra.Command) (env, error) {
	path, err := config.Path(configFlag)
	if err != nil {
		return env{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return env{}, err
	}
	if dirFlag != "" {
		cfg.Journal.Dir = config.ExpandHome(dirFlag)
	}
	log := logging.New(cmd.ErrOrStderr(), verbose)
	log.Debug("configuration loaded", "path", path, "journal", cfg.Journal.Dir)
	return env{cfgPath: path, cfg: cfg, log: log}, nil
}

func (e env) openStore() (*storage.Store, error) {
	return storage.Open(e.cfg.Journal.Dir, storage.WithLogger(logging.For(e.log, "storage")))
}
