// bhost runs behaviors as a service: a catalog-backed troupe with
// HTTP, WebSocket, and MQTT event ingress, effect broadcast to
// WebSocket clients, and bolt-backed persistence.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/store/bolt"
	"github.com/Comcast/bearings/store/mem"
)

func main() {

	var (
		catalogDir = flag.String("s", "catalog", "behavior catalog directory")
		dbFile     = flag.String("d", "", "instance snapshot file (bolt); empty disables persistence")
		entityFile = flag.String("e", "", "entity store file (bolt); empty means in-memory")

		httpPort = flag.String("h", ":8080", "HTTP port")
		httpDir  = flag.String("f", "", "directory to serve at /static/")

		mqttBroker = flag.String("m", "", "MQTT broker, e.g. tcp://localhost:1883; empty disables MQTT")
		mqttID     = flag.String("i", "bhost", "MQTT client id")
		mqttTopic  = flag.String("t", "bearings/events", "MQTT subscription topic")

		verbose = flag.Bool("v", false, "debug logging")
	)

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var entities core.EntityStore
	if *entityFile != "" {
		es, err := bolt.NewStore(*entityFile)
		if err == nil {
			err = es.Open(ctx)
		}
		if err != nil {
			logger.Error("entity store open failed", "file", *entityFile, "error", err)
			os.Exit(1)
		}
		defer es.Close(context.Background())
		entities = es
	} else {
		entities = mem.NewStore()
	}

	snapshots := NewSnapshotStore(*dbFile)
	if err := snapshots.Open(ctx); err != nil {
		logger.Error("snapshot store open failed", "file", *dbFile, "error", err)
		os.Exit(1)
	}

	s, err := NewService(ctx, *catalogDir, entities, snapshots, logger)
	if err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
	defer s.Close(context.Background())

	if err := s.Restore(ctx); err != nil {
		logger.Error("restore failed", "error", err)
		os.Exit(1)
	}

	mq := NewMQTTIngress(ctx, s, *mqttBroker, *mqttID, *mqttTopic, logger)
	if err := mq.Start(ctx); err != nil {
		logger.Error("mqtt failed", "broker", *mqttBroker, "error", err)
		os.Exit(1)
	}
	defer mq.Stop(context.Background())

	mux := s.Handler()
	if *httpDir != "" {
		fs := http.FileServer(http.Dir(*httpDir))
		mux.Handle("/static/", http.StripPrefix("/static", fs))
	}

	srv := &http.Server{Addr: *httpPort, Handler: mux}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "port", *httpPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
