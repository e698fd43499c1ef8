package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"guardian/src/guardian"
	"guardian/src/handler"
	"guardian/src/metrics"
	"guardian/src/repository"
)

// NewRouter wires the guardian surface onto a chi router.
func NewRouter(engine *guardian.Engine) *chi.Mux {
	errorsRepo := repository.NewErrorRepository()
	correctionsRepo := repository.NewCorrectionRepository()
	rulesRepo := repository.NewRuleRepository()
	alertsRepo := repository.NewAlertRepository()
	configRepo := repository.NewConfigRepository()
	statsRepo := repository.NewStatsRepository()

	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/guardian", func(r chi.Router) {
		r.Post("/errors", handler.ReportErrorHandler(engine))
		r.Get("/errors", handler.SearchErrorsHandler(errorsRepo))
		r.Get("/errors/{id}", handler.GetErrorHandler(errorsRepo))

		r.Get("/corrections", handler.SearchCorrectionsHandler(correctionsRepo))
		r.Post("/corrections", handler.CreateCorrectionHandler(engine))
		r.Get("/corrections/{correctionID}", handler.GetCorrectionHandler(correctionsRepo))
		r.Post("/corrections/{correctionID}/approve", handler.ApproveCorrectionHandler(engine))
		r.Post("/corrections/{correctionID}/reject", handler.RejectCorrectionHandler(engine))
		r.Post("/corrections/{correctionID}/rollback", handler.RollbackCorrectionHandler(engine))

		r.Get("/rules", handler.ListRulesHandler(rulesRepo))
		r.Post("/rules", handler.CreateRuleHandler(rulesRepo))
		r.Put("/rules/{id}", handler.UpdateRuleHandler(rulesRepo))
		r.Delete("/rules/{id}", handler.DeactivateRuleHandler(rulesRepo))

		r.Get("/alerts", handler.ListAlertsHandler(alertsRepo))
		r.Post("/alerts/{id}/acknowledge", handler.AcknowledgeAlertHandler(alertsRepo))
		r.Post("/alerts/{id}/resolve", handler.ResolveAlertHandler(alertsRepo))

		r.Get("/config", handler.GetConfigHandler(configRepo))
		r.Put("/config", handler.UpdateConfigHandler(configRepo))

		r.Get("/stats", handler.StatsHandler(statsRepo))
	})

	return r
}

func StartServer(port string) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.WithError(err).Error("Failed to register metrics")
	}

	engine := guardian.NewEngine()
	r := NewRouter(engine)

	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
