package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg bindery.Config
	log *slog.Logger
)

func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "bindery",
		Short:         "Declarative HTML binding toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = bindery.DefaultConfig()
			if configPath != "" {
				loaded, err := bindery.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			lv := new(slog.LevelVar)
			lv.Set(logging.ParseLevel(cfg.LogLevel))
			if cfg.Debug {
				lv.Set(slog.LevelDebug)
			}
			log = logging.New(os.Stderr, lv)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(matchCmd(), renderCmd(), vetCmd(), serveCmd())
	return root
}
