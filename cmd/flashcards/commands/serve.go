package commands

import (
	"github.com/spf13/cobra"

	"github.com/Raumain/flashcards/cmd/flashcards-api/handlers"
	"github.com/Raumain/flashcards/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Serve(ctx, handlers.NewRouter(a))
}
