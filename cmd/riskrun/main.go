// Команда riskrun выполняет один прогон конвейера и печатает отчет в JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"machine-risk-service/internal/app"
	"machine-risk-service/internal/config"
	"machine-risk-service/internal/ingest"
	"machine-risk-service/internal/logging"
)

// Коды выхода
const (
	exitOK         = 0
	exitFailure    = 1
	exitUnreadable = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML config")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitFailure
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return exitFailure
	}
	defer logger.Sync()

	components, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", zap.Error(err))
		return exitFailure
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := components.Runner.Run(ctx)
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		if errors.Is(err, ingest.ErrSourceUnreadable) {
			return exitUnreadable
		}
		return exitFailure
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to encode report", zap.Error(err))
		return exitFailure
	}
	return exitOK
}
