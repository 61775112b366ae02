package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Raumain/flashcards/cmd/flashcards/ui"
	"github.com/Raumain/flashcards/internal/app"
	"github.com/Raumain/flashcards/internal/storage"
)

var thematicsUser string

var thematicsCmd = &cobra.Command{
	Use:   "thematics",
	Short: "List a user's thematics",
	RunE:  runThematics,
}

func init() {
	thematicsCmd.Flags().StringVarP(&thematicsUser, "user", "u", "", "user id (required)")
	_ = thematicsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(thematicsCmd)
}

func runThematics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := app.OpenDatabase(ctx, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := storage.NewThematicRepository(db).List(ctx, thematicsUser, 0)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("Aucune thématique pour %s", thematicsUser)
		return nil
	}

	rows := make([][]string, len(list))
	for i, t := range list {
		rows[i] = []string{
			t.Icon + " " + t.Name,
			strconv.Itoa(t.FlashcardCount),
			t.PDFName,
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			t.ID.String(),
		}
	}
	ui.Section("Thématiques de " + thematicsUser)
	ui.Table([]string{"Nom", "Cartes", "PDF", "Créée", "ID"}, rows)
	return nil
}
