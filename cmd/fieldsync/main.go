// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

// fieldsync is the operator CLI for the offline sync engine: inspect the
// local cache, queue records and trigger sync cycles against the backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aaglobalreachgmbh/fieldsync/internal/auth"
	"github.com/aaglobalreachgmbh/fieldsync/offlinestore"
	"github.com/aaglobalreachgmbh/fieldsync/offlinesync"
)

type cliConfig struct {
	DataPath          string `mapstructure:"data_path"`
	ServerURL         string `mapstructure:"server_url"`
	AuthSecret        string `mapstructure:"auth_secret"`
	UserID            string `mapstructure:"user_id"`
	TenantID          string `mapstructure:"tenant_id"`
	LogLevel          string `mapstructure:"log_level"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds"`
	MaxUploadAttempts int    `mapstructure:"max_upload_attempts"`
}

var (
	cfg     *cliConfig
	logger  *slog.Logger
	store   *offlinestore.Store
	monitor *offlinesync.Monitor
	engine  *offlinesync.Engine
)

var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Offline cache and sync engine for the field-sales app",
	Long: `fieldsync manages the on-device cache of the sales-margin calculator:
hardware catalog, tariffs, customers and checklists for offline use, plus
the outbox of offers, calculations and visit reports created in the field.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func main() {
	rootCmd.AddCommand(statsCmd, syncCmd, offerCmd, calcCmd, requeueCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	teardown()
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger = newLogger(cfg.LogLevel)

	// Every command, and every remote call it makes, runs as the
	// configured identity.
	cmd.SetContext(auth.WithIdentity(cmd.Context(), auth.Identity{
		UserID:   cfg.UserID,
		TenantID: cfg.TenantID,
	}))

	store, err = offlinestore.Open(cfg.DataPath, logger)
	if err != nil {
		// Offline capability is gone entirely; nothing else works.
		return err
	}

	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	tokens := auth.NewHS256TokenSource(cfg.AuthSecret, cfg.UserID, cfg.TenantID, time.Hour)
	remote := offlinesync.NewHTTPRemote(cfg.ServerURL, tokens.Token, timeout, logger)

	monitor = offlinesync.NewMonitor(healthProbe(cfg.ServerURL, timeout))

	syncCfg := offlinesync.DefaultConfig()
	syncCfg.RequestTimeout = timeout
	syncCfg.MaxUploadAttempts = cfg.MaxUploadAttempts

	engine = offlinesync.New(store, remote, monitor, syncCfg, logger)
	return engine.Start(cmd.Context())
}

func teardown() {
	if engine != nil {
		engine.Close()
	}
	if store != nil {
		store.Close()
	}
}

func loadConfig() (*cliConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	viper.SetEnvPrefix("fieldsync")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetDefault("data_path", filepath.Join(home, ".fieldsync", "offline.db"))
	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("auth_secret", "")
	viper.SetDefault("user_id", "local-user")
	viper.SetDefault("tenant_id", "tenant_default")
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("request_timeout_seconds", 30)
	viper.SetDefault("max_upload_attempts", 5)

	var c cliConfig
	if err := viper.Unmarshal(&c); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(c.DataPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &c, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// healthProbe checks the backend's health endpoint; connectivity is
// whatever the probe says right now.
func healthProbe(baseURL string, timeout time.Duration) offlinesync.Prober {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL+"/healthz", nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < 500
	}
}
