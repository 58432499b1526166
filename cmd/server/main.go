package main

import (
	"log/slog"
	"os"

	"rentdesk/internal/app"
	"rentdesk/internal/logger"
)

func main() {
	logHandler := logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
