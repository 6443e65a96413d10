// Package main provides the entry point for the PR relay server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brettins/discord-pr-manager/internal/commands"
	"github.com/brettins/discord-pr-manager/internal/config"
	"github.com/brettins/discord-pr-manager/internal/discord"
	"github.com/brettins/discord-pr-manager/internal/dispatch"
	"github.com/brettins/discord-pr-manager/internal/guilds"
	"github.com/brettins/discord-pr-manager/internal/registry"
	"github.com/brettins/discord-pr-manager/internal/relay"
	"github.com/brettins/discord-pr-manager/internal/webhook"
)

const (
	serverReadTimeout  = 15 * time.Second
	serverWriteTimeout = 15 * time.Second
	serverIdleTimeout  = 120 * time.Second
	dispatchCapacity   = 256
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	exitCode := run(ctx, cancel)
	cancel() // Ensure cleanup before exit
	os.Exit(exitCode)
}

func run(ctx context.Context, cancel context.CancelFunc) int {
	// Load server configuration from environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	slog.Info("configuration loaded",
		"has_discord_bot_token", cfg.DiscordBotToken != "",
		"port", cfg.Port,
		"public_url", cfg.PublicURL,
		"guild_settings_path", cfg.GuildSettingsPath)

	// Load persisted per-guild settings
	store := guilds.NewStore(cfg.GuildSettingsPath, slog.Default())
	if err := store.Load(); err != nil {
		slog.Error("failed to load guild settings", "error", err)
		return 1
	}

	// Connect to Discord
	client, err := discord.New(cfg.DiscordBotToken)
	if err != nil {
		slog.Error("failed to create Discord client", "error", err)
		return 1
	}
	if err := client.Open(); err != nil {
		slog.Error("failed to connect to Discord", "error", err)
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close Discord session", "error", err)
		}
	}()

	// Wire the reconciliation pipeline
	reg := registry.New(client, slog.Default())
	engine := relay.New(relay.Config{
		Registry: reg,
		Reactor:  client,
		Logger:   slog.Default(),
	})
	queue := dispatch.New(dispatchCapacity, slog.Default())

	// Chat command handling
	cmdHandler := commands.NewHandler(commands.Config{
		Chat:      client,
		Guilds:    store,
		Queue:     queue,
		Engine:    engine,
		Registry:  reg,
		PublicURL: cfg.PublicURL,
		Logger:    slog.Default(),
	})
	client.OnMessage(cmdHandler.HandleMessage)

	// Webhook HTTP server
	webhookServer := webhook.NewServer(store, queue, engine, slog.Default())
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      webhookServer.Router(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	// Start services
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		slog.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		queue.Run(ctx)
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "error", err)
		cancel()
		return 1
	}

	slog.Info("shutdown complete")
	return 0
}
