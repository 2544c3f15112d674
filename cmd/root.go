package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
)

// cliState carries what PersistentPreRunE loaded to the subcommands.
type cliState struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&cliState{})
}

// buildRootCmd fills st before any subcommand runs.
func buildRootCmd(st *cliState) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	root := &cobra.Command{
		Use:   "rollcall",
		Short: "Face-recognition attendance",
		Long: `rollcall enrolls faces under roll numbers and marks attendance when a
captured frame matches an enrolled face. It runs as an HTTP service (serve)
or one-off against the configured store (enroll, recognize).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional. Its entries join the environment layer and
			// never replace variables that are already set.
			_ = godotenv.Load()

			if configPath != "" {
				if err := os.Setenv("ROLLCALL_CONFIG", configPath); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}
			if err := logger.Init(); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			st.cfg = cfg
			st.log = logger.Get()
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				st.log.Warn(cmd.Context(), "invalid log_level; falling back to info",
					logger.String("log_level", cfg.LogLevel), logger.Error(err))
				_ = logger.SetLevelString("info")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides ROLLCALL_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(st),
		newEnrollCmd(st),
		newRecognizeCmd(st),
		newVersionCmd(),
	)
	return root
}
