package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	handlers "github.com/copro-tools/coproledger/pkg/handlers/ledger"
	ledgermiddleware "github.com/copro-tools/coproledger/pkg/server/middleware"
	"github.com/copro-tools/coproledger/pkg/services/alert"
	alertstore "github.com/copro-tools/coproledger/pkg/store/sqlite/alert"
	chargestore "github.com/copro-tools/coproledger/pkg/store/sqlite/charge"
	ownerstore "github.com/copro-tools/coproledger/pkg/store/sqlite/owner"
	runstore "github.com/copro-tools/coproledger/pkg/store/sqlite/run"
)

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
}

type Dependencies struct {
	Owners  ownerstore.Store
	Charges chargestore.Store
	Alerts  alertstore.Store
	Engine  *alert.Engine
	Runs    runstore.Store
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	deps := config.Dependencies
	ledgerHandler := handlers.NewHandler(deps.Owners, deps.Charges, deps.Alerts, deps.Engine, deps.Runs)

	router := chi.NewRouter()

	router.Use(ledgermiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/owners", ledgerHandler.ListOwners)
		r.Get("/owners/{code}/charges", ledgerHandler.GetOwnerCharges)
		r.Get("/charges", ledgerHandler.ListCharges)
		r.Get("/alerts", ledgerHandler.ListAlerts)
		r.Get("/alerts/activity", ledgerHandler.ListActivity)
		r.Get("/alerts/config", ledgerHandler.ListAlertConfigs)
		r.Put("/alerts/config/{type}", ledgerHandler.UpdateAlertConfig)
		r.Get("/runs", ledgerHandler.ListRuns)
	})

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
