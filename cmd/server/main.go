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

	"github.com/blackmichael/reader-tagsfeed/internal/config"
	"github.com/blackmichael/reader-tagsfeed/internal/domain"
	"github.com/blackmichael/reader-tagsfeed/internal/httpserver"
	"github.com/blackmichael/reader-tagsfeed/internal/sqlite"
	"github.com/blackmichael/reader-tagsfeed/internal/wpcom"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up repository (implements both PostRepository and TagRepository)
	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("opened database", "path", cfg.DatabasePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.FollowedTags) > 0 {
		seed := make([]domain.ReaderTag, len(cfg.FollowedTags))
		for i, t := range cfg.FollowedTags {
			seed[i] = domain.ReaderTag{Slug: t.Slug, DisplayName: t.DisplayName}
		}
		if err := repo.ReplaceFollowedTags(ctx, seed); err != nil {
			return fmt.Errorf("seed followed tags: %w", err)
		}
		logger.Info("seeded followed tags", "file", cfg.TagsFile, "tags", len(seed))
	}

	client := wpcom.NewClient(cfg.APIBaseURL, cfg.AccessToken, cfg.PostsPerTag)
	feedService := domain.NewTagsFeedService(client, client, repo, logger, domain.Options{
		MaxConcurrentFetches: int64(cfg.MaxConcurrentFetches),
	})
	defer feedService.Close()

	followed, err := repo.GetFollowedTags(ctx)
	if err != nil {
		return fmt.Errorf("load followed tags: %w", err)
	}
	feedService.Start(followed)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start background post cache cleanup
	go feedService.StartCleanupJob(ctx, time.Minute, 7*24*time.Hour, 5000)

	server := httpserver.NewServer(cfg, feedService, repo, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "tags", len(followed))

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
