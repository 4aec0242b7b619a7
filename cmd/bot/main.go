package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"graig/internal/config"
	"graig/internal/database"
	"graig/internal/discord"
	"graig/internal/logging"
	"graig/internal/meme"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)
	discordgo.Logger = logging.DiscordgoLogger(logger)

	ctx := context.Background()

	// Connect to MongoDB and prepare the query indexes
	db, err := database.New(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Error("failed to create database indexes", "error", err)
		os.Exit(1)
	}

	store := database.NewStore(db)
	memes := meme.NewClient(logger)

	// Initialize Discord bot
	bot, err := discord.New(cfg, store, memes, logger)
	if err != nil {
		logger.Error("failed to create Discord bot", "error", err)
		os.Exit(1)
	}

	// Start bot
	if err := bot.Start(); err != nil {
		logger.Error("failed to start bot", "error", err)
		os.Exit(1)
	}
	defer bot.Stop()

	logger.Info("bot is running")

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	logger.Info("shutting down bot")
}
