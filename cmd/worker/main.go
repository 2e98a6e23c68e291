package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jcourtner/wayfarer/internal/config"
	"github.com/jcourtner/wayfarer/internal/logger"
	"github.com/jcourtner/wayfarer/internal/narrative"
	"github.com/jcourtner/wayfarer/internal/notify"
	"github.com/jcourtner/wayfarer/internal/queue"
	internalstorage "github.com/jcourtner/wayfarer/internal/storage"
	"github.com/jcourtner/wayfarer/internal/worker"
	"github.com/jcourtner/wayfarer/internal/worlddata"
	"github.com/jcourtner/wayfarer/pkg/travel"
	"github.com/jcourtner/wayfarer/pkg/world"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	slogger := logger.Setup(cfg)
	slogger.Info("Starting Wayfarer travel worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL)

	store, err := internalstorage.NewRedisStore(cfg.RedisURL, slogger)
	if err != nil {
		slogger.Error("Failed to create store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slogger.Error("Error closing store", "error", err)
		}
	}()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), time.Minute)
	defer startupCancel()
	if err := store.WaitForConnection(startupCtx); err != nil {
		slogger.Error("Redis unavailable", "error", err)
		os.Exit(1)
	}

	graph, catalog, err := loadWorld(startupCtx, cfg, store, slogger)
	if err != nil {
		slogger.Error("Failed to load world data", "error", err)
		os.Exit(1)
	}
	slogger.Info("World loaded", "areas", graph.Len(), "encounters", len(catalog))

	orch := travel.NewOrchestrator(travel.Config{
		Graph:      graph,
		Store:      store,
		Encounters: travel.NewManager(catalog, nil, slogger),
		Sink:       notify.NewLogSink(slogger),
		Narrator:   narrative.NewStaticNarrator(),
		Logger:     slogger,
	})

	queueClient, err := queue.NewClient(cfg.RedisURL, slogger)
	if err != nil {
		slogger.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			slogger.Error("Error closing queue client", "error", err)
		}
	}()

	w := worker.New(queue.NewCommandQueue(queueClient), orch, store, queueClient.Redis(), slogger, cfg.WorkerID)

	done := make(chan error, 1)
	go func() {
		done <- w.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		slogger.Info("Signal received, shutting down", "signal", s.String())
	case err := <-done:
		if err != nil {
			slogger.Error("Worker stopped with error", "error", err)
		}
	}

	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		slogger.Error("Shutdown incomplete", "error", err)
	}
	slogger.Info("Wayfarer travel worker stopped")
}

// loadWorld builds the world graph from the store, seeding the store from
// the authored world file on first run. The encounter catalog always comes
// from the world file.
func loadWorld(ctx context.Context, cfg *config.Config, store *internalstorage.RedisStore, slogger *slog.Logger) (*world.Graph, []travel.Encounter, error) {
	file, err := worlddata.Load(filepath.Join(cfg.DataDir, "world.json"))
	if err != nil {
		return nil, nil, err
	}

	names, err := store.ListAreaNames(ctx)
	if err != nil {
		return nil, nil, err
	}

	if len(names) == 0 {
		slogger.Info("Seeding area records from world file", "areas", len(file.Areas))
		for _, a := range file.Areas {
			if err := store.SaveArea(ctx, a); err != nil {
				return nil, nil, err
			}
		}
		return worlddata.BuildGraph(file, slogger), file.Encounters, nil
	}

	g := world.NewGraph(slogger)
	for _, name := range names {
		a, err := store.LoadArea(ctx, "", name)
		if err != nil {
			return nil, nil, err
		}
		if a == nil {
			slogger.Warn("Indexed area missing from store", "area", name)
			continue
		}
		g.Add(a)
	}
	g.Resolve()
	return g, file.Encounters, nil
}
