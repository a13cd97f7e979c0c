package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quorumkv/internal/configuration"
	"quorumkv/internal/logging"
)

func main() {
	configDir := flag.String("config", "internal/static", "directory holding application.yml")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	config, err := configuration.Load(*configDir)
	if err != nil {
		slog.Error("Failed to load configuration", "Error", err)
		os.Exit(1)
	}

	logging.Init(config.App.LogLevel)
	slog.Info("Starting node...", "node_id", config.Raft.NodeID)

	app, err := buildApp(config)
	if err != nil {
		slog.Error("Failed to build node", "Error", err)
		os.Exit(1)
	}

	status := app.Node.Status()
	slog.Info("raft status on startup",
		"id", app.Node.ID(),
		"state", status.RaftState.String(),
		"term", status.Term,
		"lead", status.Lead,
		"voters", status.Config.Voters,
	)

	if err := app.Driver.Start(); err != nil {
		slog.Error("Failed to recover node state", "Error", err)
		os.Exit(1)
	}

	if _, err := app.Transport.StartRaftServer(); err != nil {
		slog.Error("Failed to start raft server", "Error", err)
		os.Exit(1)
	}
	if _, err := app.Transport.StartClientServer(); err != nil {
		slog.Error("Failed to start client server", "Error", err)
		os.Exit(1)
	}
	app.Metrics.Start()

	slog.Info("Node Ready")
	<-ctx.Done()

	slog.Info("Shutting down node...")

	// Refuse new client work first, then drain consensus, and keep the
	// peer listener up until leadership has moved.
	app.Transport.StopClientServer()
	app.Driver.Stop()
	app.Transport.StopRaftServer()
	app.Metrics.Stop()

	if err := app.Engine.Close(); err != nil {
		slog.Error("Failed to close storage engine", "Error", err)
	}

	slog.Info("Node stopped")
}
