// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Command challenger bridges Matrix rooms to an activity-tracker
// service: rooms adopt a challenge by URL, the bridge polls each
// challenge round-robin and announces new activities and distance
// milestones.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/trailhound/challenger/bridge"
	"github.com/trailhound/challenger/hound"
	"github.com/trailhound/challenger/lib/clock"
	"github.com/trailhound/challenger/lib/config"
	"github.com/trailhound/challenger/lib/ref"
	"github.com/trailhound/challenger/lib/secret"
	"github.com/trailhound/challenger/messaging"
	"github.com/trailhound/challenger/observe"
)

var version = "dev"

func main() {
	configPath := pflag.String("config", "", "path to the YAML config file (or set CHALLENGER_CONFIG)")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("challenger " + version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, logger *slog.Logger) error {
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	adminRoom, err := ref.ParseRoomID(cfg.AdminRoom)
	if err != nil {
		return fmt.Errorf("invalid admin_room: %w", err)
	}

	accessToken, err := resolveSecret(cfg.AccessToken, cfg.AccessTokenFile)
	if err != nil {
		return fmt.Errorf("resolving access token: %w", err)
	}
	trackerToken, err := resolveSecret(cfg.Tracker.Token, cfg.Tracker.TokenFile)
	if err != nil {
		accessToken.Close()
		return fmt.Errorf("resolving tracker token: %w", err)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		accessToken.Close()
		trackerToken.Close()
		return err
	}
	session := client.SessionFromTokenBuffer(accessToken)
	defer session.Close()

	tracker := hound.NewClient(hound.ClientConfig{Token: trackerToken})
	defer tracker.Close()

	clk := clock.Real()

	userID, err := whoAmIRetry(ctx, session, clk, logger)
	if err != nil {
		return err
	}
	logger.Info("authenticated", "user_id", userID, "version", version)

	engine := bridge.New(session, tracker, bridge.NewAdminSet(), bridge.Config{
		ControlRoom:   adminRoom,
		ActivityLimit: cfg.Tracker.ActivityLimit,
	}, clk, logger)

	if err := engine.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("bootstrap complete", "rooms", engine.RoomCount())

	if cfg.MetricsListen != "" {
		go serveMetrics(ctx, cfg.MetricsListen, logger)
	}

	sinceToken, initial, err := messaging.InitialSync(ctx, session, "")
	if err != nil {
		return err
	}
	engine.HandleSync(ctx, initial)

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		messaging.RunSyncLoop(ctx, session, messaging.SyncConfig{}, sinceToken, engine.HandleSync, clk, logger)
	}()

	scheduler := bridge.NewScheduler(engine, cfg.PollInterval.Std())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	<-syncDone
	<-schedulerDone
	return nil
}

// resolveSecret loads a credential into protected memory, preferring
// the file form when both are configured.
func resolveSecret(inline, file string) (*secret.Buffer, error) {
	if file != "" {
		return secret.ReadFromPath(file)
	}
	return secret.NewFromString(inline)
}

// whoAmIRetry validates the access token, retrying on transient
// failures so a homeserver that is still starting does not kill the
// bridge. Authentication errors fail immediately.
func whoAmIRetry(ctx context.Context, session messaging.Session, clk clock.Clock, logger *slog.Logger) (ref.UserID, error) {
	const retryInterval = 5 * time.Second
	for {
		userID, err := session.WhoAmI(ctx)
		if err == nil {
			return userID, nil
		}
		if messaging.IsMatrixError(err, messaging.ErrCodeUnknownToken) {
			return ref.UserID{}, fmt.Errorf("access token rejected: %w", err)
		}
		if ctx.Err() != nil {
			return ref.UserID{}, ctx.Err()
		}
		logger.Error("whoami failed, retrying",
			"error", err,
			"retry_in", retryInterval)
		select {
		case <-ctx.Done():
			return ref.UserID{}, ctx.Err()
		case <-clk.After(retryInterval):
		}
	}
}

func serveMetrics(ctx context.Context, listen string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	server := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "error", err)
	}
}
