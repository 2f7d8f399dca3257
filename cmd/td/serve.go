package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trackd/internal/config"
	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/presence"
	"github.com/alfredjeanlab/trackd/internal/server"
	"github.com/alfredjeanlab/trackd/internal/store/postgres"
	trackdsync "github.com/alfredjeanlab/trackd/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the trackd HTTP and gRPC servers",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (TRACKD_NATS_URL not set)")
		}

		ts := server.NewTrackerServer(store, publisher)
		ts.Presence.StartReaper(&presence.ReaperConfig{
			IdleThreshold: cfg.PresenceIdle,
			EvictAfter:    cfg.PresenceEvict,
			OnIdle: func(userID string) {
				logger.Debug("user idle", "user", userID)
			},
		})

		grpcServer := server.NewGRPCServer(ts, cfg.AuthToken)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			ts.Presence.Stop()
			publisher.Close()
			store.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           ts.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cfg, store, logger)

		if cfg.AuthToken == "" {
			logger.Warn("authentication disabled (TRACKD_AUTH_TOKEN not set)")
		}
		logger.Info("trackd server started", "grpc_addr", cfg.GRPCAddr, "http_addr", cfg.HTTPAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		ts.Presence.Stop()
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// startSync starts the export scheduler when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(cfg *config.Config, src trackdsync.Source, logger *slog.Logger) *trackdsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []trackdsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := trackdsync.NewS3Destination(context.Background(),
			cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint, cfg.SyncS3SnapshotPrefix)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, trackdsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch, cfg.SyncGitAuthor))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}
	s := trackdsync.NewScheduler(src, dests, cfg.SyncInterval, logger)
	s.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return s
}
