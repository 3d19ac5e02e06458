package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"fleetcore/config"
	"fleetcore/engine"
	"fleetcore/fleetstate"
	"fleetcore/messaging"
	"fleetcore/navgraph"
	"fleetcore/store"
	"fleetcore/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "fleetcore.yaml", "path to config file")
	writeConfig := flag.Bool("write-config", false, "write the effective config to -config and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("fleetcore", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *writeConfig {
		if err := cfg.Save(*configPath); err != nil {
			log.Fatalf("write config: %v", err)
		}
		log.Printf("fleetcore: wrote %s", *configPath)
		return
	}

	// Navigation graph
	graph, err := navgraph.Load(cfg.Graph.Path)
	if err != nil {
		log.Fatalf("load graph: %v", err)
	}
	log.Printf("fleetcore: graph loaded (%d vertices, %d lanes)", graph.Len(), len(graph.Lanes()))

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("fleetcore: database open (%s)", cfg.Database.Driver)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	redisOK := redisClient.Ping(ctx).Err() == nil
	cancel()
	if redisOK {
		log.Printf("fleetcore: redis connected (%s)", cfg.Redis.Address)
	} else {
		log.Printf("fleetcore: redis not available, reads served from the engine")
	}
	defer redisClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig: cfg,
		Graph:     graph,
		DB:        db,
	})
	defer eng.Close()

	// Fleet state cache
	var state *fleetstate.Manager
	if redisOK {
		state = fleetstate.NewManager(fleetstate.NewRedisStore(redisClient), eng)
		if err := state.Reset(); err != nil {
			log.Printf("fleetcore: redis reset: %v", err)
		}
		eng.PublishTo(state)
	}

	// Messaging
	var msgClient *messaging.Client
	if b := cfg.Messaging.Backend; b != "" && b != "none" {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("fleetcore: messaging connect failed (%v)", err)
		} else {
			log.Printf("fleetcore: messaging connected (%s)", b)
		}
		defer msgClient.Close()

		// Inbound commands
		handler := messaging.NewCommandHandler(eng, msgClient, cfg.Messaging.StationID, cfg.Messaging.EventTopic)
		ingestor := handler.Ingestor()
		promauto.With(eng.Registry()).NewCounterFunc(prometheus.CounterOpts{
			Name: "fleetcore_messages_dropped_total",
			Help: "Inbound messages discarded before reaching a handler.",
		}, func() float64 { return float64(ingestor.Dropped()) })
		if err := msgClient.Subscribe(cfg.Messaging.CommandTopic, func(_ string, data []byte) {
			ingestor.HandleRaw(data)
		}); err != nil {
			log.Printf("fleetcore: command subscribe failed: %v", err)
		} else {
			log.Printf("fleetcore: listening for commands on %s", cfg.Messaging.CommandTopic)
		}

		// Outbound events
		publisher := messaging.NewEventPublisher(msgClient, cfg.Messaging.EventTopic, cfg.Messaging.StationID, cfg.Messaging.PublishEvery)
		publisher.Attach(eng.Events)
		defer publisher.Stop()
	}

	if cfg.Graph.SeedPath != "" {
		n, err := eng.LoadSeed(cfg.Graph.SeedPath)
		if err != nil {
			log.Printf("fleetcore: seed %s: %v", cfg.Graph.SeedPath, err)
		}
		if n > 0 {
			log.Printf("fleetcore: seeded %d robots from %s", n, cfg.Graph.SeedPath)
		}
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng, www.Options{State: state, Messaging: msgClient})

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("fleetcore: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	if cfg.Sim.Autostart {
		eng.Start()
	}
	log.Printf("fleetcore: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("fleetcore: shutting down...")
	eng.Stop()
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("fleetcore: stopped")
}
