// Command mergeodf runs the ODF report service: templates are uploaded
// into a registry and merged with JSON or form data into .odt/.ods
// documents, optionally converted to PDF by an external service.
//
// Usage:
//
//	mergeodf -config service.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	mergeodf "github.com/OSSII/oxool-module-mergeodf"
	"github.com/OSSII/oxool-module-mergeodf/convert"
	"github.com/OSSII/oxool-module-mergeodf/registry"
	"github.com/OSSII/oxool-module-mergeodf/server"

	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mergeodf: loading config: %v\n", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store, err := registry.Open(
		filepath.Join(cfg.DataDir, "data.db"),
		filepath.Join(cfg.DataDir, "repository"))
	if err != nil {
		logger.Error("registry unavailable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	engine := mergeodf.NewEngine(
		mergeodf.WithLogger(logger),
		mergeodf.WithWorkDir(cfg.WorkDir),
	)

	opts := []server.ServerOption{server.WithLogger(logger)}
	if cfg.ConverterURL != "" {
		opts = append(opts, server.WithConverter(convert.NewClient(cfg.ConverterURL)))
	}
	svc := server.New(engine, store, opts...)

	r := chi.NewRouter()
	r.Mount("/mergeodf", svc.Router())

	logger.Info("report service listening", "addr", cfg.Listen)
	if err := http.ListenAndServe(cfg.Listen, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
