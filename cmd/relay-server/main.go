package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay-server/internal/api"
	"relay-server/internal/api/router"
	"relay-server/internal/config"
	"relay-server/internal/env"
	"relay-server/internal/logger"
	"relay-server/internal/presence"
	"relay-server/internal/queue"
	"relay-server/internal/registry"
	"relay-server/internal/relay"
	"relay-server/internal/service/session"
	"relay-server/internal/websocket"
	"relay-server/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// drainTimeout bounds how long shutdown waits for closed connections to
// report back before the event queue is stopped.
const drainTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", env.Get(env.ConfigPath), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	if cfg.NodeID == "" {
		cfg.NodeID = utils.GenerateNodeID()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWithErr("relay server stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("starting relay server", "config", cfg.String())

	reg := prometheus.NewRegistry()
	httpQueue := queue.NewRequestQueueManager("http", cfg.Queue.Size, cfg.Queue.Workers, log)
	events := queue.NewRequestQueueManager("events", cfg.Queue.EventBuffer, 1, log)

	var observers []relay.Observer

	if cfg.Redis.Enabled {
		client, err := presence.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		tracker := presence.NewTracker(client, presence.Config{
			NodeID:    cfg.NodeID,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Channel:   cfg.Redis.EventsChannel,
			Logger:    log,
		})
		if err := tracker.Reset(ctx); err != nil {
			log.WarnWithErr("failed to reset presence hash", err, "key", tracker.Key())
		}
		observers = append(observers, tracker)
	}

	repo, err := session.NewRepository(ctx, cfg)
	if err != nil {
		return err
	}
	var sessions *session.Service
	if repo != nil {
		if c, ok := repo.(io.Closer); ok {
			defer c.Close()
		}
		sessions = session.NewService(repo, cfg.NodeID, log)
		observers = append(observers, sessions)
	}

	rl := relay.New(registry.New(), relay.Config{
		SendWelcome: cfg.Relay.SendWelcome,
		Logger:      log,
		Metrics:     relay.NewMetrics(reg),
		Events:      events,
		Observers:   observers,
	})

	ws := websocket.NewHandler(rl, websocket.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     cfg.Relay.SendBuffer,
		ReadLimit:      cfg.Relay.ReadLimit,
		PingInterval:   cfg.Relay.PingInterval,
		WriteTimeout:   cfg.Relay.WriteTimeout,
		Logger:         log,
		Metrics:        websocket.NewMetrics(reg),
	})

	prefix := cfg.Server.APIPrefix
	server := api.NewAPIServer(api.Options{
		ListenAddr:     cfg.Server.Address,
		NodeID:         cfg.NodeID,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminEnabled:   cfg.Server.AdminEnabled,
		Logger:         log,
		Registry:       reg,
	}, httpQueue, api.Dependencies{
		Relay:     rl,
		WebSocket: ws,
		Sessions:  sessions,
	},
		router.UtilsRoutes(prefix),
		router.WebsocketRoutes(cfg.Server.WSPath),
		router.RelayRoutes(prefix),
		router.SessionRoutes(prefix),
	)

	runErr := server.Run(ctx)

	// Upgraded connections are hijacked and survive the HTTP server shutdown.
	if n := rl.CloseAll(); n > 0 {
		log.Info("closing client connections", "count", n)
		deadline := time.Now().Add(drainTimeout)
		for rl.Registry().Size() > 0 && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)
		}
	}

	httpQueue.Shutdown()
	events.Shutdown()
	log.Info("relay server stopped", "node_id", cfg.NodeID)
	return runErr
}
