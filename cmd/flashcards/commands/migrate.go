package commands

import (
	"github.com/spf13/cobra"

	"github.com/Raumain/flashcards/cmd/flashcards/ui"
	"github.com/Raumain/flashcards/internal/storage"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "list migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	m := storage.NewMigrator(db, cfg.Database.Driver)

	if !migrateStatus {
		applied, err := m.Up(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			ui.Info("Base de données à jour")
		}
		for _, v := range applied {
			ui.Success("Migration %s appliquée", v)
		}
		return nil
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, v := range status.Applied {
		rows = append(rows, []string{v, "appliquée"})
	}
	for _, v := range status.Pending {
		rows = append(rows, []string{v, "en attente"})
	}
	ui.Section("Migrations (" + cfg.Database.Driver + ")")
	ui.Table([]string{"Version", "État"}, rows)
	if status.UpToDate {
		ui.Success("%d migrations, base à jour", status.Total)
	} else {
		ui.Warning("%d migration(s) en attente", len(status.Pending))
	}
	return nil
}
