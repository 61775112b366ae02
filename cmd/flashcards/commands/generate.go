package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Raumain/flashcards/cmd/flashcards/ui"
	"github.com/Raumain/flashcards/internal/domain"
	"github.com/Raumain/flashcards/internal/pipeline"
	"github.com/Raumain/flashcards/internal/validation"
)

var (
	generateOutput string
	generateUser   string
)

var generateCmd = &cobra.Command{
	Use:   "generate <file.pdf>",
	Short: "Generate flashcards from a PDF",
	Long: `Generate runs the full pipeline locally: rasterization, optimization,
generation and, with --user, persistence under a new thematic.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output JSON path (default: <input>-flashcards.json)")
	generateCmd.Flags().StringVarP(&generateUser, "user", "u", "", "save the flashcards for this user id")
	rootCmd.AddCommand(generateCmd)
}

// cardsBarTotal sizes the partial-results bar to the largest accepted
// generation; Finish fills it when fewer cards arrive.
const cardsBarTotal = validation.MaxFlashcards

var stageLabels = map[domain.Stage]string{
	domain.StageAdmitted:     "Préparation...",
	domain.StageRasterizing:  "Conversion du PDF en images...",
	domain.StageOptimizing:   "Optimisation des images...",
	domain.StageGuardChecked: "Vérification de la taille...",
	domain.StageGenerating:   "Génération des flashcards...",
	domain.StageValidated:    "Validation...",
	domain.StagePersisting:   "Enregistrement...",
}

func runGenerate(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("read PDF: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if generateOutput == "" {
		base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
		generateOutput = base + "-flashcards.json"
	}

	ui.Section("Génération de flashcards")
	ui.Info("PDF: %s", pdfPath)
	if generateUser != "" {
		ui.Info("Utilisateur: %s", generateUser)
	}

	start := time.Now()
	spinner := ui.NewSpinner("Préparation...")
	spinner.Start()

	var (
		bar     *ui.ProgressBar
		outcome *domain.Outcome
		runErr  error
	)
	stopProgress := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		} else {
			spinner.Stop()
		}
	}

	events := a.Pipeline.Stream(ctx, pipeline.Request{
		ClientKey: "cli",
		UserID:    generateUser,
		FileName:  filepath.Base(pdfPath),
		PDF:       data,
	})
	for ev := range events {
		switch ev.Type {
		case domain.EventStage:
			if label, ok := stageLabels[ev.Stage]; ok && bar == nil {
				spinner.UpdateMessage(label)
			}
		case domain.EventPartial:
			if bar == nil {
				spinner.Stop()
				bar = ui.NewProgressBar(cardsBarTotal, "Flashcards")
			}
			bar.Set(int64(len(ev.Partial.Flashcards)))
		case domain.EventComplete:
			outcome = ev.Outcome
		case domain.EventError:
			runErr = ev.Err
		}
	}
	stopProgress()

	if runErr != nil {
		apiErr := pipeline.ToAPIError(runErr)
		ui.Error("%s (%s)", apiErr.Message, apiErr.Code)
		if apiErr.RetryAfter > 0 {
			ui.Warning("Réessayez dans %d secondes", apiErr.RetryAfter)
		}
		if verbose {
			ui.Error("%v", runErr)
		}
		return fmt.Errorf("generation failed: %s", apiErr.Code)
	}
	if outcome == nil {
		return ctx.Err()
	}

	if err := writeOutcome(generateOutput, outcome); err != nil {
		return err
	}

	printSummary(outcome, time.Since(start))
	ui.Success("Flashcards enregistrées dans %s", generateOutput)
	return nil
}

func writeOutcome(path string, outcome *domain.Outcome) error {
	raw, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func printSummary(outcome *domain.Outcome, elapsed time.Duration) {
	res := outcome.Result
	counts := res.CountByDifficulty()

	ui.Section("Résumé")
	rows := [][]string{
		{"Sujet", res.Metadata.Subject},
		{"Pages", strconv.Itoa(len(res.PageImages))},
		{"Flashcards", strconv.Itoa(len(res.Flashcards))},
		{"Faciles", strconv.Itoa(counts[domain.DifficultyEasy])},
		{"Moyennes", strconv.Itoa(counts[domain.DifficultyMedium])},
		{"Difficiles", strconv.Itoa(counts[domain.DifficultyHard])},
		{"Durée", ui.FormatDuration(elapsed)},
	}
	if outcome.Thematic != nil {
		rows = append(rows, []string{"Thématique", outcome.Thematic.Icon + " " + outcome.Thematic.Name})
	}
	ui.Table([]string{"Métrique", "Valeur"}, rows)
	if res.Metadata.Recommendations != "" {
		fmt.Println()
		ui.Info("%s", res.Metadata.Recommendations)
	}
}
