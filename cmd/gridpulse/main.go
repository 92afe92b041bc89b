package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/terminal-bench/gridpulse/internal/api"
	"github.com/terminal-bench/gridpulse/internal/cache"
	"github.com/terminal-bench/gridpulse/internal/config"
	"github.com/terminal-bench/gridpulse/internal/engine"
	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/internal/scheduler"
	"github.com/terminal-bench/gridpulse/internal/stream"
	"github.com/terminal-bench/gridpulse/internal/topology"
	"github.com/terminal-bench/gridpulse/pkg/circuit"
	"github.com/terminal-bench/gridpulse/pkg/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer log.Sync()

	tbl := topology.Default()
	if cfg.TopologyPath != "" {
		if tbl, err = topology.Load(cfg.TopologyPath); err != nil {
			log.Fatal("failed to load topology", zap.String("path", cfg.TopologyPath), zap.Error(err))
		}
	}

	seed := cfg.EntropySeed
	if seed == 0 {
		seed = time.Now().UnixNano()
		cfg.SetOverride("ENTROPY_SEED", strconv.FormatInt(seed, 10))
	}

	eng, err := engine.New(tbl,
		engine.WithEntropy(entropy.NewRand(seed)),
		engine.WithRiskConfig(cfg.RiskConfig()),
	)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}

	hub := stream.NewHub(log.Named("stream"))
	sinks := []scheduler.Sink{hub}

	var natsClient *messaging.Client
	if cfg.NATSUrl != "" {
		natsClient, err = messaging.NewClient(messaging.DefaultConfig(cfg.NATSUrl), log.Named("nats"))
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		sinks = append(sinks, scheduler.Guard(messaging.NewSnapshotPublisher(natsClient), newBreaker("nats", log)))
	}

	if cfg.RedisAddr != "" {
		rdb := cache.NewClient(cfg.RedisAddr)
		defer rdb.Close()
		sinks = append(sinks, scheduler.Guard(cache.NewSnapshotCache(rdb, 3*cfg.TickInterval), newBreaker("redis", log)))
	}

	monitor := scheduler.NewMonitor(eng,
		scheduler.WithInterval(cfg.TickInterval),
		scheduler.WithWorkers(cfg.EvalWorkers),
		scheduler.WithLogger(log.Named("monitor")),
		scheduler.WithSinks(sinks...),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Simulate {
		monitor.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(eng, monitor, api.Config{
		WebSocket:   hub.ServeWS,
		Logger:      log.Named("api"),
		BaseContext: ctx,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()
	log.Info("gridpulse started",
		zap.String("port", cfg.Port),
		zap.Int("societies", len(tbl.Societies())),
		zap.Any("overrides", cfg.Overrides()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	monitor.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	hub.Close()
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.Warn("nats drain failed", zap.Error(err))
		}
	}
	log.Info("server exited")
}

func newBreaker(name string, log *zap.Logger) *circuit.Breaker {
	return circuit.NewBreaker(circuit.Config{
		Name:        name,
		MaxFailures: 3,
		Cooldown:    30 * time.Second,
		OnStateChange: func(name string, from, to circuit.State) {
			log.Warn("sink breaker state changed",
				zap.String("sink", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
