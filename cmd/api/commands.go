package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"devboard/internal/app"
	"devboard/internal/config"
	"devboard/internal/models/audit"
	"devboard/internal/repository/postgres"
	"devboard/internal/seed"
	"devboard/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func openStorage(ctx context.Context, cfg *config.Config) (*postgres.Storage, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required (flag --database-url or DEVBOARD_DATABASE_URL)")
	}
	return app.OpenStorage(ctx, cfg.Database)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Apply or roll back database migrations"}

	run := func(apply func(*postgres.Storage, context.Context) error, done string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			storage, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer storage.Close()
			if err := apply(storage, cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  run((*postgres.Storage).Migrate, "migrations applied"),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE:  run((*postgres.Storage).Down, "migrations rolled back"),
		},
	)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create initial users from a YAML file; existing emails are skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Seed.File == "" {
				return errors.New("seed file is required (--file or seed.file)")
			}
			storage, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			users := service.NewUserService(storage.Users(), service.NewAuditService(storage.Audit()), cfg.Auth.BcryptCost)
			res, err := seed.ApplyFile(cmd.Context(), users, cfg.Seed.File)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d user(s), skipped %d existing\n", len(res.Created), len(res.Skipped))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "seed YAML file")
	bindFlag("seed.file", cmd, "file")
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the audit log"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			take, _ := cmd.Flags().GetInt("take")
			action, _ := cmd.Flags().GetString("action")
			_, take, err = service.Page(0, take)
			if err != nil {
				return err
			}

			storage, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			entries, err := storage.Audit().List(cmd.Context(), audit.Filter{Action: action, Take: take})
			if err != nil {
				return err
			}
			renderAudit(entries)
			return nil
		},
	}
	list.Flags().Int("take", 20, "number of entries")
	list.Flags().String("action", "", "only entries with this action, e.g. UPDATE_TASK")

	cmd.AddCommand(list)
	return cmd
}

func renderAudit(entries []*audit.Entry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Time", "User", "Action", "Entity", "IP", "Details"})
	for _, e := range entries {
		entity := e.EntityType
		if e.EntityID != "" {
			entity += " " + e.EntityID
		}
		tw.AppendRow(table.Row{
			e.CreatedAt.Local().Format(time.DateTime),
			e.UserID,
			e.Action,
			entity,
			e.IPAddress,
			e.Details.String(),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", len(entries)})
	tw.Render()
}
