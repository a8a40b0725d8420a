package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/leadflow/internal/config"
	"github.com/nextlevelbuilder/leadflow/internal/crm"
	"github.com/nextlevelbuilder/leadflow/internal/queue"
	"github.com/nextlevelbuilder/leadflow/internal/worker"
)

func retryCmd() *cobra.Command {
	var pauseSec int
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Replay failed CRM deliveries from the retry queue",
		Long:  "Drains the durable retry queue, re-delivering lead records whose CRM push failed. Run alongside the worker or as a periodic job.",
		Run: func(cmd *cobra.Command, args []string) {
			runRetry(time.Duration(pauseSec) * time.Second)
		},
	}
	cmd.Flags().IntVar(&pauseSec, "pause", 5, "seconds to wait after a failed replay")
	return cmd
}

func runRetry(pause time.Duration) {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rdb, err := newRedisClient(cfg.Redis.URL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("redis unreachable", "error", err)
		os.Exit(1)
	}

	retries := queue.NewRedis(rdb, queue.RetryKey)
	dispatcher := crm.New(cfg.CRM.URL, cfg.CRM.APIKey,
		time.Duration(cfg.CRM.TimeoutSec)*time.Second, retries)

	rc := worker.NewRetryConsumer(retries, dispatcher, cfg.PollTimeout(), pause)
	if err := rc.Run(ctx); err != nil {
		slog.Error("retry consumer exited", "error", err)
		os.Exit(1)
	}
}
