// Package main runs the marinestreams hub: alerts REST, delta and binary
// stream websockets, and the optional NATS uplink.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/c360/marinestreams/config"
	"github.com/c360/marinestreams/security"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "marinestreams"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args, os.Stderr)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPaths)
	if err != nil {
		return err
	}

	switch {
	case cliCfg.Validate:
		logger.Info("Configuration is valid", "layers", cliCfg.ConfigPaths)
		return nil
	case cliCfg.PrintConfig:
		fmt.Println(cfg.String())
		return nil
	case cliCfg.IssueToken != "":
		return issueToken(os.Stdout, cfg, cliCfg)
	}

	logger.Info("Starting marinestreams",
		"version", Version,
		"build_time", BuildTime,
		"vessel", cfg.Platform.ID,
		"layers", cliCfg.ConfigPaths)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := h.run(ctx, cliCfg.HealthInterval); err != nil {
		h.shutdown(cliCfg.ShutdownTimeout)
		return err
	}

	logger.Info("Received shutdown signal")
	h.shutdown(cliCfg.ShutdownTimeout)
	logger.Info("marinestreams shutdown complete")
	return nil
}

// loadConfig merges the given layers over the defaults.
func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range paths {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// issueToken prints a bearer token signed with the configured secret.
func issueToken(w io.Writer, cfg *config.Config, cliCfg *CLIConfig) error {
	signer, err := security.NewJWT(cfg.Security.JWTSecret)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	var perms []string
	for _, p := range strings.Split(cliCfg.TokenPerms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}

	token, err := signer.Issue(cliCfg.IssueToken, perms, cliCfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
