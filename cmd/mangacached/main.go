package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kawayiYokami/HentaiReader-sub000/service"
	"github.com/kawayiYokami/HentaiReader-sub000/translator"
	"github.com/kawayiYokami/HentaiReader-sub000/web"
)

// fsChecker treats document ids as paths in the manga library.
type fsChecker struct{}

func (fsChecker) Exists(ctx context.Context, document string) (bool, error) {
	_, err := os.Stat(document)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func main() {
	// Parse flags
	dataDir := flag.String("data-dir", "./data", "Data directory for the BadgerDB artifact store")
	dbPath := flag.String("db-path", "./data/metadata.db", "Path to the SQLite metadata database")
	translatorURL := flag.String("translator-url", "http://127.0.0.1:9801", "Base URL of the translation backend")
	adminAddr := flag.String("admin-addr", ":9802", "Listen address for the admin API")
	workers := flag.Int("workers", 2, "Concurrent translation computations")
	maxRetries := flag.Int("max-retries", 2, "Retry budget for provider failures")
	deadline := flag.Duration("deadline", 2*time.Minute, "Per-computation deadline")
	ephemeralEntries := flag.Int("ephemeral-entries", 16, "Ephemeral tier capacity")
	memoryEntries := flag.Int("memory-entries", 256, "Memory tier capacity")
	memoryTTL := flag.Duration("memory-ttl", 30*time.Minute, "Memory tier entry TTL")
	evictionInterval := flag.Duration("eviction-interval", time.Minute, "Eviction manager interval")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	// Set up slog with the specified level
	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	log.Println("Starting manga translation cache...")

	backend, err := translator.New(&translator.Config{BaseURL: *translatorURL})
	if err != nil {
		log.Fatalf("Failed to configure translation backend: %v", err)
	}

	svc, err := service.New(service.Config{
		DataDir:          *dataDir,
		DBPath:           *dbPath,
		EphemeralEntries: *ephemeralEntries,
		MemoryEntries:    *memoryEntries,
		MemoryTTL:        *memoryTTL,
		EvictionInterval: *evictionInterval,
		Workers:          *workers,
		MaxRetries:       *maxRetries,
		Deadline:         *deadline,
		Translator:       backend,
		Sources:          backend,
		Documents:        fsChecker{},
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache service: %v", err)
	}
	defer svc.Close()

	adminSrv := web.New(logger, *adminAddr, svc.Admin())
	go func() {
		if err := adminSrv.Run(); err != nil {
			log.Fatalf("Admin server error: %v", err)
		}
	}()

	log.Printf("Cache started | Artifacts: %s | Metadata: %s | Admin: %s", *dataDir, *dbPath, *adminAddr)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	adminSrv.Close(ctx)
}
