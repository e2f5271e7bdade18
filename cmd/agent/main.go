// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sndie3/LABAN/internal/client"
	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.GetAgentConfig()
	if err != nil {
		logger.NewLogger("laban-agent").Fatal().Err(err).Msg("error getting configs")
	}

	log := logger.NewDeviceLogger("laban-agent", cfg.App.LogFile)
	log.Debug().
		Bool("backend", cfg.BackendConfigured()).
		Str("db", cfg.Storage.DB.DSN).
		Str("medium", cfg.Storage.Medium.Driver).
		Str("status_address", cfg.Status.HTTPAddress).
		Msg("received configs")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := client.NewApp(ctx, cfg, models.NewBuildInfo(buildVersion, buildDate, buildCommit), log)
	if err != nil {
		log.Fatal().Err(err).Msg("init agent error")
	}

	if err = app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("agent run error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
