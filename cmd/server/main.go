package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/discovery"
	"github.com/ryandielhenn/zephyrfd/internal/config"
	"github.com/ryandielhenn/zephyrfd/internal/telemetry"
	"github.com/ryandielhenn/zephyrfd/pkg/detector"
	"github.com/ryandielhenn/zephyrfd/pkg/gossip"
	"github.com/ryandielhenn/zephyrfd/pkg/node"
	"github.com/ryandielhenn/zephyrfd/pkg/ring"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("ZEPHYRFD_CONFIG"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		newLogger("info").Fatal("load config", zap.Error(err))
	}
	log := newLogger(cfg.LogLevel).With(zap.String("self", cfg.SelfID))
	defer log.Sync()
	telemetry.SetBuildInfo(version, gitSHA)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Build the failure detector and the monitor that serialises it
	fd, err := detector.New(cfg.Detector.Algorithm, cfg.Detector.Params, detector.WithLogger(log.Named("detector")))
	if err != nil {
		log.Fatal("build detector", zap.Error(err))
	}
	fd = telemetry.InstrumentDetector(cfg.Detector.Algorithm, fd)

	mon := gossip.NewMonitor(fd, gossip.MonitorConfig{
		InitialTimeout: cfg.Monitor.InitialTimeout,
		PingInterval:   cfg.Monitor.PingInterval,
		DeadAfter:      cfg.Monitor.DeadAfter,
		Unit:           time.Millisecond,
	}, gossip.WithLogger(log.Named("monitor")), gossip.WithStateHook(countTransition))

	r := ring.New(cfg.Monitor.VNodes, ring.FNV32a)
	n := node.NewNode(mon, r, cfg.SelfID, cfg.AdvertiseAddr, cfg.Monitor.Replicas, log.Named("node"))

	// 2. Join the observer set through etcd, when configured
	if len(cfg.EtcdEndpoints) > 0 {
		cli, err := discovery.NewClient(cfg.EtcdEndpoints, 5*time.Second)
		if err != nil {
			log.Fatal("create etcd client", zap.Error(err))
		}
		defer cli.Close()
		startDiscovery(ctx, cli, cfg, n, log.Named("discovery"))
	} else {
		log.Info("no etcd endpoints, running standalone")
	}

	// 3. Probe due members in the background
	go mon.Run(ctx, cfg.Monitor.ProbeInterval, gossip.HTTPProber{Timeout: cfg.Monitor.ProbeTimeout})
	go exportCounts(ctx, mon, cfg.Monitor.ProbeInterval)

	// 4. Wire up HTTP endpoints
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", telemetry.MetricsHandler())
	n.Routes(mux, telemetry.Instrument)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("zephyrfd observer listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("algorithm", cfg.Detector.Algorithm),
		zap.Int("replicas", cfg.Monitor.Replicas))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", zap.Error(err))
	}
	log.Info("shut down")
}

func startDiscovery(ctx context.Context, cli *clientv3.Client, cfg *config.Config, n *node.Node, log *zap.Logger) {
	observers := cfg.Prefix + discovery.ObserversDir
	entities := cfg.Prefix + discovery.EntitiesDir

	leaseID, cancel, err := discovery.RegisterNode(ctx, cli, observers+cfg.SelfID, cfg.AdvertiseAddr, cfg.LeaseTTL)
	if err != nil {
		log.Fatal("register observer", zap.Error(err))
	}
	log.Info("registered observer", zap.String("key", observers+cfg.SelfID), zap.Int64("lease", int64(leaseID)))
	go func() {
		<-ctx.Done()
		cancel()
		revokeCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_, _ = cli.Revoke(revokeCtx, leaseID)
	}()

	go func() {
		err := discovery.WatchPeers(ctx, cli, observers, log, func(peers map[string]string) {
			log.Info("observer set changed", zap.Int("observers", len(peers)))
			n.SetPeers(peers)
		})
		if err != nil && ctx.Err() == nil {
			log.Error("observer watch stopped", zap.Error(err))
		}
	}()
	go func() {
		err := discovery.WatchPeers(ctx, cli, entities, log, func(ents map[string]string) {
			log.Info("entity set changed", zap.Int("entities", len(ents)))
			n.SyncEntities(ents)
		})
		if err != nil && ctx.Err() == nil {
			log.Error("entity watch stopped", zap.Error(err))
		}
	}()
}

func countTransition(m gossip.Member, from gossip.State) {
	telemetry.StateTransitions.WithLabelValues(from.String(), m.State.String()).Inc()
}

// exportCounts refreshes the per-state member gauge until ctx is done.
func exportCounts(ctx context.Context, mon *gossip.Monitor, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts := mon.Counts()
			for _, s := range []gossip.State{gossip.StateAlive, gossip.StateSuspect, gossip.StateDead} {
				telemetry.MemberStates.WithLabelValues(s.String()).Set(float64(counts[s]))
			}
		}
	}
}

func newLogger(level string) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if level == "debug" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}
