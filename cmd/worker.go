package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/leadflow/internal/channels"
	"github.com/nextlevelbuilder/leadflow/internal/channels/messenger"
	"github.com/nextlevelbuilder/leadflow/internal/config"
	"github.com/nextlevelbuilder/leadflow/internal/crm"
	"github.com/nextlevelbuilder/leadflow/internal/engine"
	"github.com/nextlevelbuilder/leadflow/internal/handoff"
	"github.com/nextlevelbuilder/leadflow/internal/providers"
	"github.com/nextlevelbuilder/leadflow/internal/queue"
	redisstore "github.com/nextlevelbuilder/leadflow/internal/store/redis"
	"github.com/nextlevelbuilder/leadflow/internal/telemetry"
	"github.com/nextlevelbuilder/leadflow/internal/topics"
	"github.com/nextlevelbuilder/leadflow/internal/worker"
)

var errMissingAPIKey = errors.New("missing completion API key")

// runWorker wraps workerMain so its defers (telemetry flush, redis
// close) always run before the process exits.
func runWorker() {
	if err := workerMain(); err != nil {
		os.Exit(1)
	}
}

func workerMain() error {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if cfg.Provider.APIKey == "" {
		slog.Error("no completion API key configured, set LEADFLOW_PROVIDER_API_KEY")
		return errMissingAPIKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	rdb, err := newRedisClient(cfg.Redis.URL)
	if err != nil {
		slog.Error("invalid redis url", "error", err)
		return err
	}
	defer rdb.Close()

	sessions := redisstore.New(rdb, redisstore.Options{
		TTL:        cfg.SessionTTL(),
		HistoryMax: cfg.Sessions.HistoryMax,
	})

	resolver := topics.NewResolver(cfg.Topics.Dir, cfg.Topics.Pages)

	var sender channels.Sender = channels.Discard{}
	if cfg.Messenger.PageToken != "" {
		sender = messenger.New(cfg.Messenger.APIBase, cfg.Messenger.PageToken, cfg.Messenger.SendRPS)
	} else {
		slog.Warn("no page token configured, replies will be discarded")
	}

	w := worker.New(worker.Deps{
		Sessions: sessions,
		Inbound:  queue.NewRedis(rdb, queue.InboundKey),
		Provider: providers.NewOpenAI(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model,
			time.Duration(cfg.Provider.TimeoutSec)*time.Second),
		Engine:  engine.New(sessions),
		Handoff: handoff.New(sessions, cfg.Worker.BotAppID, cfg.HandoffTimeout()),
		Topics:  resolver,
		CRM: crm.New(cfg.CRM.URL, cfg.CRM.APIKey,
			time.Duration(cfg.CRM.TimeoutSec)*time.Second,
			queue.NewRedis(rdb, queue.RetryKey)),
		Sender: sender,
	}, worker.Options{
		PollTimeout:   cfg.PollTimeout(),
		ErrorBackoff:  cfg.ErrorBackoff(),
		HistoryWindow: cfg.Sessions.HistoryWindow,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		if err := resolver.Watch(gctx.Done()); err != nil {
			// hot reload is a convenience, not a requirement
			slog.Warn("topic pack watcher unavailable", "error", err)
		}
		return nil
	})

	slog.Info("leadflow worker up", "version", Version, "model", cfg.Provider.Model)
	if err := g.Wait(); err != nil {
		slog.Error("worker exited", "error", err)
		return err
	}
	return nil
}

func newRedisClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}
