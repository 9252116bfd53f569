package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"devboard/internal/app"
	"devboard/internal/config"
	"devboard/internal/logger"

	"github.com/spf13/cobra"
)

var v = config.NewViper()

var rootCmd = &cobra.Command{
	Use:           "devboard",
	Short:         "Team task tracker, release calendar and audit log API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func main() {
	addPersistentFlags()
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedCmd(), auditCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ./config.yml or /etc/devboard/config.yml)")
	rootCmd.PersistentFlags().Bool("dev", false, "human-readable development logging")
	rootCmd.PersistentFlags().String("database-url", "", "postgres connection string")
	_ = v.BindPFlag("logging.development", rootCmd.PersistentFlags().Lookup("dev"))
	_ = v.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, file)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func bindFlag(key string, cmd *cobra.Command, name string) {
	_ = v.BindPFlag(key, cmd.Flags().Lookup(name))
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the due-soon reminder worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := app.New(cfg)
			if err := a.Init(ctx); err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().String("port", "", "listen port")
	cmd.Flags().String("repository", "", "storage backend: postgres or inmemory")
	cmd.Flags().String("redis-addr", "", "redis address for token revocation")
	bindFlag("server.port", cmd, "port")
	bindFlag("repository.type", cmd, "repository")
	bindFlag("redis.addr", cmd, "redis-addr")
	return cmd
}
