package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/timcash/earthengine-dem/internal/artifacts"
	"github.com/timcash/earthengine-dem/internal/cache/metastore"
	"github.com/timcash/earthengine-dem/internal/core/config"
	"github.com/timcash/earthengine-dem/internal/core/httpclient"
	"github.com/timcash/earthengine-dem/internal/core/observability"
	"github.com/timcash/earthengine-dem/internal/core/server"
	"github.com/timcash/earthengine-dem/internal/fetcher"
	"github.com/timcash/earthengine-dem/internal/hotness/expdecay"
	"github.com/timcash/earthengine-dem/internal/invalidation/kafkaconsumer"
	"github.com/timcash/earthengine-dem/internal/logger"
	"github.com/timcash/earthengine-dem/internal/provider"
	"github.com/timcash/earthengine-dem/internal/render"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	credsFlag := flag.String("credentials", "", "service account credentials file (overrides CREDENTIALS_FILE)")
	skipFlag := flag.Bool("skip-cache", false, "bypass the render cache for every request")
	flag.Parse()

	cfg := config.FromEnv()
	if *credsFlag != "" {
		cfg.CredentialsFile = strings.TrimSpace(*credsFlag)
	}
	if *skipFlag {
		cfg.SkipCache = true
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting dem viewer",
		"addr", cfg.Addr,
		"version", Version,
		"provider", cfg.ProviderURL,
		"cache_dir", cfg.CacheDir,
		"metadata_backend", cfg.MetadataBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewOutbound()

	prov, err := provider.New(appLog, httpClient, cfg.ProviderURL, cfg.CredentialsFile)
	if err != nil {
		appLog.Error("provider setup failed", "err", err)
		return 1
	}
	if err := prov.Initialize(ctx); err != nil {
		appLog.Error("provider initialization failed", "err", err)
		return 1
	}

	var backend metastore.Backend
	switch cfg.MetadataBackend {
	case "redis":
		rb, err := metastore.NewRedisBackend(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis metadata backend unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rb.Close() }()
		backend = rb
	default:
		fb, err := metastore.NewFileBackend(cfg.CacheDir)
		if err != nil {
			appLog.Error("could not prepare cache directory", "dir", cfg.CacheDir, "err", err)
			return 1
		}
		backend = fb
	}
	store := metastore.Open(backend, appLog)
	appLog.Info("metadata index loaded", "entries", store.Len())

	hot := expdecay.New(cfg.HotHalfLife)

	orch := render.New(prov, store, fetcher.New(httpClient), hot, render.Config{
		CacheDir:       cfg.CacheDir,
		StatsScale:     cfg.StatsScale,
		StatsMaxPixels: cfg.StatsMaxPixels,
		H3Res:          cfg.H3Res,
	}, appLog)

	art, err := artifacts.New(cfg.CacheDir, cfg.ArtifactLRU, appLog)
	if err != nil {
		appLog.Error("artifact server setup failed", "err", err)
		return 1
	}

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.FromEnv(), appLog,
			store, art, hot, cfg.CacheDir, cfg.H3Res)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("kafka consumer exited", "err", err)
			}
		}()
	}

	deps := server.Deps{Renderer: orch, Artifacts: art, Readiness: prov}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
