package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kawayiYokami/HentaiReader-sub000/admin"
	"github.com/kawayiYokami/HentaiReader-sub000/blobstore"
	blobbadger "github.com/kawayiYokami/HentaiReader-sub000/blobstore/badger"
	blobmemory "github.com/kawayiYokami/HentaiReader-sub000/blobstore/memory"
	"github.com/kawayiYokami/HentaiReader-sub000/coordinator"
	"github.com/kawayiYokami/HentaiReader-sub000/eviction"
	"github.com/kawayiYokami/HentaiReader-sub000/fingerprint"
	"github.com/kawayiYokami/HentaiReader-sub000/metadata/sqlite"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
	"github.com/kawayiYokami/HentaiReader-sub000/resolver"
	"github.com/kawayiYokami/HentaiReader-sub000/store"
	"github.com/kawayiYokami/HentaiReader-sub000/tier"
	tierephemeral "github.com/kawayiYokami/HentaiReader-sub000/tier/ephemeral"
	tiermemory "github.com/kawayiYokami/HentaiReader-sub000/tier/memory"
)

// Config holds configuration for the cache service.
type Config struct {
	DataDir string // BadgerDB artifact directory; empty selects in-memory blobs
	DBPath  string // SQLite metadata path

	EphemeralEntries int           // defaults to 16
	EphemeralTTL     time.Duration // defaults to 5m
	MemoryEntries    int           // defaults to 256
	MemoryTTL        time.Duration // defaults to 30m
	EvictionInterval time.Duration // defaults to 1m

	Workers    int
	MaxRetries int
	Deadline   time.Duration

	Translator coordinator.Translator
	Sources    coordinator.SourceProvider
	Documents  admin.DocumentChecker // optional

	Logger *slog.Logger
}

// Service is the explicitly constructed cache instance: tiers, resolver,
// coordinator, eviction manager and admin surface wired together with
// clear ownership. Tests build as many isolated instances as they like.
type Service struct {
	store  *store.Store
	tiers  []tier.Tier
	res    *resolver.Resolver
	coord  *coordinator.Coordinator
	evict  *eviction.Manager
	adm    *admin.Service
	log    *slog.Logger
	gcStop chan struct{}
}

// New assembles a Service from the given configuration.
func New(cfg Config) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("DBPath is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EphemeralEntries <= 0 {
		cfg.EphemeralEntries = 16
	}
	if cfg.EphemeralTTL <= 0 {
		cfg.EphemeralTTL = 5 * time.Minute
	}
	if cfg.MemoryEntries <= 0 {
		cfg.MemoryEntries = 256
	}
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = 30 * time.Minute
	}

	var blobs blobstore.Store
	if cfg.DataDir != "" {
		var err error
		blobs, err = blobbadger.New(&blobbadger.Config{DataDir: cfg.DataDir})
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact store: %w", err)
		}
	} else {
		blobs = blobmemory.New()
	}

	meta, err := sqlite.New(&sqlite.Config{DBPath: cfg.DBPath})
	if err != nil {
		blobs.Close()
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	st := store.New(blobs, meta, cfg.Logger)

	eph, err := tierephemeral.New(cfg.EphemeralEntries)
	if err != nil {
		st.Close()
		return nil, err
	}
	mem, err := tiermemory.New(cfg.MemoryEntries)
	if err != nil {
		st.Close()
		return nil, err
	}
	tiers := []tier.Tier{eph, mem}

	// The coordinator promotes completed work through the resolver, and
	// the resolver schedules misses through the coordinator; the hook
	// closure breaks the construction cycle.
	var res *resolver.Resolver
	coord, err := coordinator.New(coordinator.Config{
		Translator:    cfg.Translator,
		Sources:       cfg.Sources,
		Substitutions: substitutionSource{meta: meta},
		Store:         st,
		OnComplete: func(entry *models.CacheEntry) {
			if res != nil {
				res.PromoteComputed(entry)
			}
		},
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Deadline:   cfg.Deadline,
		Logger:     cfg.Logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	res, err = resolver.New(resolver.Config{
		Tiers:     tiers,
		Store:     st,
		Scheduler: coord,
		Logger:    cfg.Logger,
	})
	if err != nil {
		coord.Close()
		st.Close()
		return nil, err
	}

	evict, err := eviction.New(eviction.Config{
		Interval: cfg.EvictionInterval,
		Policies: []eviction.Policy{
			{Tier: eph, MaxAge: cfg.EphemeralTTL, MaxEntries: cfg.EphemeralEntries},
			{Tier: mem, MaxAge: cfg.MemoryTTL, MaxEntries: cfg.MemoryEntries},
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		coord.Close()
		st.Close()
		return nil, err
	}
	evict.Start()

	adm, err := admin.New(admin.Config{
		Store:     st,
		Tiers:     tiers,
		Documents: cfg.Documents,
		Logger:    cfg.Logger,
	})
	if err != nil {
		evict.Stop()
		coord.Close()
		st.Close()
		return nil, err
	}

	svc := &Service{
		store: st,
		tiers: tiers,
		res:   res,
		coord: coord,
		evict: evict,
		adm:   adm,
		log:   cfg.Logger,
	}

	// BadgerDB reclaims value-log space only when asked.
	if b, ok := blobs.(*blobbadger.Store); ok {
		svc.gcStop = make(chan struct{})
		go svc.runBlobGC(b)
	}
	return svc, nil
}

func (s *Service) runBlobGC(blobs *blobbadger.Store) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			if err := blobs.RunGC(0.5); err != nil {
				s.log.Warn("artifact store gc failed", "error", err)
			}
		}
	}
}

// KeyFor builds the cache key for a page, fingerprinting the source
// bytes so a changed source file invalidates old entries transparently.
func KeyFor(document string, page int, language string, source []byte) (models.CacheKey, error) {
	fp, err := fingerprint.New(source)
	if err != nil {
		return models.CacheKey{}, err
	}
	return models.CacheKey{
		Document:    document,
		Page:        page,
		Language:    language,
		Fingerprint: fp.Hex(),
	}, nil
}

// Resolve answers an artifact lookup without blocking on computation.
func (s *Service) Resolve(ctx context.Context, key models.CacheKey, preferTranslated bool) (resolver.Resolution, error) {
	return s.res.Resolve(ctx, key, preferTranslated)
}

// Request schedules (or joins) a computation and returns a waitable
// handle.
func (s *Service) Request(key models.CacheKey, priority int) (*coordinator.Handle, error) {
	return s.coord.Request(key, priority)
}

// Admin returns the administration surface.
func (s *Service) Admin() *admin.Service {
	return s.adm
}

// Close shuts down the service in dependency order.
func (s *Service) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
	}
	s.evict.Stop()
	if err := s.coord.Close(); err != nil {
		s.log.Error("coordinator shutdown", "error", err)
	}
	return s.store.Close()
}

// substitutionSource adapts the metadata store to the coordinator's
// snapshot contract.
type substitutionSource struct {
	meta interface {
		ListSubstitutions(ctx context.Context) ([]models.SubstitutionMapping, error)
	}
}

func (s substitutionSource) Substitutions(ctx context.Context) ([]models.SubstitutionMapping, error) {
	return s.meta.ListSubstitutions(ctx)
}
