package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"guardian/src/database"
	"guardian/src/guardian"
	"guardian/src/model"
	"guardian/src/server"
)

func main() {
	app := cli.NewApp()
	app.Name = "Guardian CMD"
	app.Usage = "The Guardian command line interface"

	app.Commands = []cli.Command{
		serveCMD,
		simulateCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the guardian HTTP server",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the guardian HTTP server against the configured database`,
	}
	simulateCMD = cli.Command{
		Name:        "simulate",
		Usage:       "run a synthetic error through the governance pipeline",
		Action:      simulateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run one synthetic CRITICAL error through dedup, rule matching, guards, execution and tests against an in-memory database`,
	}
)

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting guardian server CMD")

	if err := database.InitMainDB(); err != nil {
		return err
	}
	server.StartServer(server.GetConfig().Port)
	return nil
}

func simulateAction(_ *cli.Context) error {
	logrus.Info("Starting guardian simulation CMD")

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx := context.Background()
	engine := guardian.NewEngineWith(db, nil, nil, nil)

	rule := model.CorrectionRule{
		TenantID:            "demo",
		Name:                "clear cache on backend exceptions",
		TriggerErrorType:    model.ErrorTypeException,
		MinSeverity:         model.SeverityMajor,
		Action:              model.ActionCacheClear,
		AllowedEnvironments: string(model.EnvSandbox),
		IsReversible:        true,
		RiskLevel:           model.RiskLow,
		IsActive:            true,
	}
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		return err
	}

	det, err := engine.HandleError(ctx, guardian.ErrorReport{
		TenantID:    "demo",
		Environment: model.EnvSandbox,
		Source:      model.SourceAPIError,
		HTTPStatus:  500,
		Message:     "simulated upstream failure",
		Module:      "billing",
		Route:       "/v1/invoices",
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"error_id":      det.ID,
		"severity":      det.Severity,
		"correction_id": det.CorrectionID,
	}).Info("Simulation finished")

	return nil
}
