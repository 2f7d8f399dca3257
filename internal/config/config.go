// Package config loads trackd server settings from TRACKD_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string     // TRACKD_DATABASE_URL (required)
	GRPCAddr    string     // TRACKD_GRPC_ADDR (default ":9090")
	HTTPAddr    string     // TRACKD_HTTP_ADDR (default ":8080")
	NATSURL     string     // TRACKD_NATS_URL (optional, empty = no events)
	AuthToken   string     // TRACKD_AUTH_TOKEN (optional, empty = auth disabled)
	LogLevel    slog.Level // TRACKD_LOG_LEVEL (default "info")

	// Presence settings
	PresenceIdle  time.Duration // TRACKD_PRESENCE_IDLE (default 15m)
	PresenceEvict time.Duration // TRACKD_PRESENCE_EVICT (default 30m)

	// Sync settings
	SyncInterval         time.Duration // TRACKD_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket         string        // TRACKD_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint       string        // TRACKD_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region         string        // TRACKD_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key            string        // TRACKD_SYNC_S3_KEY (default "trackd/backup.jsonl")
	SyncS3SnapshotPrefix string        // TRACKD_SYNC_S3_SNAPSHOT_PREFIX (optional timestamped copies)
	SyncGitRepo          string        // TRACKD_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile          string        // TRACKD_SYNC_GIT_FILE (default "trackd.jsonl")
	SyncGitBranch        string        // TRACKD_SYNC_GIT_BRANCH (default "main")
	SyncGitAuthor        string        // TRACKD_SYNC_GIT_AUTHOR (optional "Name <email>")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:          os.Getenv("TRACKD_DATABASE_URL"),
		GRPCAddr:             envOrDefault("TRACKD_GRPC_ADDR", ":9090"),
		HTTPAddr:             envOrDefault("TRACKD_HTTP_ADDR", ":8080"),
		NATSURL:              os.Getenv("TRACKD_NATS_URL"),
		AuthToken:            os.Getenv("TRACKD_AUTH_TOKEN"),
		SyncS3Bucket:         os.Getenv("TRACKD_SYNC_S3_BUCKET"),
		SyncS3Endpoint:       os.Getenv("TRACKD_SYNC_S3_ENDPOINT"),
		SyncS3Region:         envOrDefault("TRACKD_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:            envOrDefault("TRACKD_SYNC_S3_KEY", "trackd/backup.jsonl"),
		SyncS3SnapshotPrefix: os.Getenv("TRACKD_SYNC_S3_SNAPSHOT_PREFIX"),
		SyncGitRepo:          os.Getenv("TRACKD_SYNC_GIT_REPO"),
		SyncGitFile:          envOrDefault("TRACKD_SYNC_GIT_FILE", "trackd.jsonl"),
		SyncGitBranch:        envOrDefault("TRACKD_SYNC_GIT_BRANCH", "main"),
		SyncGitAuthor:        os.Getenv("TRACKD_SYNC_GIT_AUTHOR"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TRACKD_DATABASE_URL is required")
	}

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("TRACKD_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("TRACKD_LOG_LEVEL: %w", err)
	}

	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"TRACKD_SYNC_INTERVAL", "3m", &c.SyncInterval},
		{"TRACKD_PRESENCE_IDLE", "15m", &c.PresenceIdle},
		{"TRACKD_PRESENCE_EVICT", "30m", &c.PresenceEvict},
	} {
		v, err := time.ParseDuration(strings.TrimSpace(envOrDefault(d.key, d.fallback)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dst = v
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
