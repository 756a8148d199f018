package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mpinel6/SDNController-CSC4501/adapter"
	"github.com/mpinel6/SDNController-CSC4501/config"
	"github.com/mpinel6/SDNController-CSC4501/engine"
	"github.com/mpinel6/SDNController-CSC4501/flows"
	"github.com/mpinel6/SDNController-CSC4501/loadbalance"
	"github.com/mpinel6/SDNController-CSC4501/resilience"
	"github.com/mpinel6/SDNController-CSC4501/statesync"
	"github.com/mpinel6/SDNController-CSC4501/topology"
)

// log init
func init() {
	logDir := "./logs"
	os.MkdirAll(logDir, 0755)

	// Configure log rotation with lumberjack
	fileLogger := &lumberjack.Logger{
		Filename:   logDir + "/controller.log",
		MaxSize:    100,  // MB
		MaxBackups: 7,    // Keep 7 old log files
		MaxAge:     30,   // Days
		Compress:   true, // Compress old log files
	}

	// Output to both file and stdout (for systemd)
	multiWriter := io.MultiWriter(os.Stdout, fileLogger)
	log.SetOutput(multiWriter)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(log.InfoLevel)

	log.Infof("Logging initialized: file=%s/controller.log, stdout=enabled", logDir)
}

func main() {
	configPath := os.Getenv("SDN_CONFIG")
	if configPath == "" {
		configPath = "controller_config.toml"
	}

	log.Infof("Loading configuration from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", configPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownSignal
		log.Infof("Received shutdown signal. Initiating graceful shutdown...")
		cancel()
	}()

	store := topology.NewStore()
	registry := flows.NewRegistry()

	prov := adapter.NewAgentProvisioner(cfg.Agents, cfg.AgentDialTimeout())
	defer prov.Close()

	res := resilience.NewManager(store, registry, prov, resilience.Options{
		BackupCount:         cfg.Controller.BackupCount,
		BackupPriorityDelta: cfg.Controller.BackupPriorityDelta,
		DegradedErrorRatio:  cfg.Controller.DegradedErrorRatio,
		DefaultPriority:     cfg.Controller.DefaultPriority,
	})
	balancer := loadbalance.NewBalancer(store, registry, prov, cfg.Controller.DefaultPriority)

	var publisher *statesync.Publisher
	if cfg.Etcd.Enabled {
		publisher, err = statesync.NewPublisher(statesync.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.EtcdDialTimeout(),
			Prefix:      cfg.Etcd.Prefix,
		})
		if err != nil {
			log.Fatalf("Failed to connect to etcd: %v", err)
		}
		defer publisher.Close()
		log.Infof("Flow state publishing to etcd enabled, prefix=%s", cfg.Etcd.Prefix)
	}

	eng, err := engine.New(store, registry, res, balancer, prov, publisher, cfg.Controller)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(ctx)
	}()

	log.Infof("Controller started. Press Ctrl+C to exit gracefully.")
	<-ctx.Done()

	wg.Wait()
	log.Infof("Shutdown complete. Exiting.")
}
