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
	"github.com/copro-tools/coproledger/pkg/store/sqlite"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
	runstore "github.com/copro-tools/coproledger/pkg/store/sqlite/run"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Serve the ledger dashboard API",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the config file (default is ./coproledger.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file loaded: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	app, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
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

	if err := alertStore.SeedDefaultConfigs(ctx); err != nil {
		return fmt.Errorf("failed to seed alert configs: %w", err)
	}
	alertEngine := alert.NewEngine(alertStore, ownerStore, chargeStore)

	logger.Info().Str("db_path", app.DbPath).Msg("ledger database opened")

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

	logger.Info().Str("addr", app.ListenAddr).Msg("starting dashboard API")
	return webAPI.Start()
}
