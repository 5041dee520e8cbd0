// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/solfi-labs/trenchbot/internal/app"
	"github.com/solfi-labs/trenchbot/internal/config"
	"github.com/solfi-labs/trenchbot/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	if cfg.LogFile != "" {
		logCfg.LogFile = cfg.LogFile
	}
	logCfg.Development = cfg.DebugLogging

	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	runner := app.NewRunner(cfg, log)
	runErr := runner.Run(context.Background())
	runner.Shutdown()
	if runErr != nil {
		log.Error("bot stopped with error", zap.Error(runErr))
		os.Exit(1)
	}
}
