package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/EllysonAlves/follower/cmd/client"
	"github.com/EllysonAlves/follower/internal/api"
	config "github.com/EllysonAlves/follower/internal/init"
	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/middleware"
	"github.com/EllysonAlves/follower/internal/notify"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Remote API client with bearer credentials
	tokens := middleware.NewMemoryTokenStore("")
	remote := api.New(cfg.APIBaseURL, cfg.APITimeout, tokens)

	userID, err := client.Authenticate(ctx, cfg, remote, tokens)
	if err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	app := client.New(cfg, remote, notify.NewLogNotifier(logger.New()), userID)
	defer app.Close()

	if err := app.Run(ctx, cfg.Mode); err != nil {
		log.Printf("%s failed: %v", cfg.Mode, err)
	}

	log.Println("Shutdown completed")
}
