package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	ai_client "modern-reader/internal/ai"
	"modern-reader/internal/config"
	"modern-reader/internal/history"
	"modern-reader/internal/logging"
	"modern-reader/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a config.toml (default: XDG config dir)")
	initConfig := flag.Bool("init-config", false, "write the default config to the user config dir and exit")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	flag.Parse()

	if *initConfig {
		if err := writeDefaultConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logging.InitLogger("info")
		slog.Error("[Main] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logging.InitLogger(cfg.Log.Level)

	slog.Info("[Main] Starting Modern Reader", slog.String("base_url", cfg.Server.BaseURL))

	httpClient, err := ai_client.NewHTTPClient(cfg.Server.CACert)
	if err != nil {
		slog.Warn("[Main] Using default TLS trust", slog.String("error", err.Error()))
	}
	client := ai_client.NewReaderClient(ai_client.Options{
		BaseURL:    cfg.Server.BaseURL,
		APIKey:     cfg.Server.APIKey,
		HTTPClient: httpClient,
	})

	appInstance := service.NewMainApp(cfg, client, openHistory(cfg.History))
	appInstance.Run()
	slog.Info("[Main] Modern Reader stopped")
}

// openHistory falls back to an in-memory store when the file is unusable.
func openHistory(cfg config.HistoryConfig) *history.Store {
	path := cfg.Path
	if !cfg.Enabled {
		path = ""
	}
	store, err := history.Open(path, cfg.MaxEntries)
	if err != nil {
		slog.Warn("[Main] History unavailable, keeping it in memory", slog.String("error", err.Error()))
		store, _ = history.Open("", cfg.MaxEntries)
	}
	return store
}

func writeDefaultConfig(path string) error {
	if path == "" {
		paths := config.UserConfigPaths()
		if len(paths) == 0 {
			return fmt.Errorf("cannot determine a config directory; pass -config")
		}
		path = paths[0]
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}
