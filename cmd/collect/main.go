package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/copro-tools/coproledger/pkg/server"
	"github.com/copro-tools/coproledger/pkg/services/alert"
	"github.com/copro-tools/coproledger/pkg/services/config"
	"github.com/copro-tools/coproledger/pkg/services/consolidate"
	"github.com/copro-tools/coproledger/pkg/services/dedup"
	"github.com/copro-tools/coproledger/pkg/services/extract"
	"github.com/copro-tools/coproledger/pkg/services/pipeline"
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
	runstore "github.com/copro-tools/coproledger/pkg/store/sqlite/run"
)

var (
	cfgPath     string
	dbPath      string
	noHeadless  bool
	showConsole bool
	serveAfter  bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "collect",
		Short: "Run one extraction of the co-ownership extranet into the ledger",
		RunE:  runCollect,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the config file (default is ./coproledger.yaml)")
	rootCmd.Flags().StringVar(&dbPath, "db-path", "",
		"Override the ledger database path")
	rootCmd.Flags().BoolVar(&noHeadless, "no-headless", false,
		"Show the browser window during extraction")
	rootCmd.Flags().BoolVar(&showConsole, "show-console", false,
		"Print the consolidated owner table after the run")
	rootCmd.Flags().BoolVar(&serveAfter, "serve", false,
		"Start the dashboard API after the run completes")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runCollect(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file loaded: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	app, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		app.DbPath = dbPath
	}
	if noHeadless {
		app.Headless = false
	}
	if showConsole {
		app.ShowConsole = true
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return fmt.Errorf("failed to load extranet credentials: %w", err)
	}

	db, err := sqlite.NewDB(sqlite.Settings{DbPath: app.DbPath})
	if err != nil {
		return fmt.Errorf("failed to open ledger database: %w", err)
	}
	defer func() { _ = db.Close() }()

	chargeStore, err := chargestore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create charge store: %w", err)
	}
	ownerStore, err := ownerstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create owner store: %w", err)
	}
	alertStore, err := alertstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create alert store: %w", err)
	}
	runStore, err := runstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create run store: %w", err)
	}

	clock := extract.NewClock()
	fetcher := extract.NewFetcher(extract.NewChromeBrowser(), clock, extract.DefaultRetryConfig())
	extractor := extract.NewExtractor(fetcher, clock)

	alertEngine := alert.NewEngine(alertStore, ownerStore, chargeStore)
	dedupEngine := dedup.NewEngine(chargeStore, alertEngine)

	runner := pipeline.NewRunner(
		db,
		extractor,
		consolidate.NewEngine(),
		alertEngine,
		dedupEngine,
		chargeStore,
		ownerStore,
		runStore,
		pipeline.Config{
			DbPath:      app.DbPath,
			BackupDir:   app.BackupDir,
			Headless:    app.Headless,
			ShowConsole: app.ShowConsole,
		},
	)

	outcome, err := runner.Run(ctx, creds)
	if err != nil {
		return fmt.Errorf("extraction run failed: %w", err)
	}

	logger.Info().
		Str("run_id", outcome.RunID).
		Str("reference_date", outcome.ReferenceDate).
		Int("owners", outcome.Owners).
		Int("charges_saved", outcome.ChargesSaved).
		Msg("run completed")

	if !serveAfter {
		return nil
	}

	webAPI := server.NewWebAPI(logger, server.Config{
		Addr: app.ListenAddr,
		Dependencies: server.Dependencies{
			Owners:  ownerStore,
			Charges: chargeStore,
			Alerts:  alertStore,
			Engine:  alertEngine,
			Runs:    runStore,
		},
	})
	return webAPI.Start()
}
