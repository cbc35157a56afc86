package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
	"github.com/kawayiYokami/HentaiReader-sub000/store"
	"github.com/kawayiYokami/HentaiReader-sub000/tier"
)

// State classifies a resolution outcome.
type State int

const (
	// Miss means no artifact exists and no computation could be scheduled.
	Miss State = iota
	// Pending means a computation is in flight; poll or subscribe.
	Pending
	// Ready means an artifact was served.
	Ready
)

func (s State) String() string {
	switch s {
	case Miss:
		return "miss"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolution is the outcome of one resolve call. Tier records which
// layer satisfied the request, for diagnostics and promotion tuning.
// Translated is false when the fallback served an untranslated source
// artifact while the translation is still pending.
type Resolution struct {
	State      State
	Artifact   []byte
	Tier       models.Tier
	Translated bool
}

// Scheduler accepts recomputation requests on a full miss. Implemented
// by the request coordinator.
type Scheduler interface {
	Schedule(key models.CacheKey, priority int) error
}

// Config holds configuration for the Resolver
type Config struct {
	Tiers     []tier.Tier // probed in order, fastest first
	Store     *store.Store
	Scheduler Scheduler
	Priority  int // priority attached to miss-triggered computations
	Logger    *slog.Logger
}

// Resolver answers artifact lookups by probing an ordered list of
// in-memory tiers and then the persistent store. It never blocks on
// computation: a full miss schedules work and returns Pending.
// New tiers slot into the ordered list without touching call sites.
type Resolver struct {
	cfg Config
}

// New creates a Resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("Scheduler is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{cfg: cfg}, nil
}

// Resolve looks up the artifact for key. With preferTranslated set and
// no translated artifact available, it falls back to the untranslated
// source artifact for the same page so callers always have something
// renderable, while the translation is computed in the background.
func (r *Resolver) Resolve(ctx context.Context, key models.CacheKey, preferTranslated bool) (Resolution, error) {
	res, err := r.lookup(ctx, key)
	if err != nil {
		return Resolution{State: Miss}, err
	}
	if res != nil {
		res.Translated = key.Translated()
		return *res, nil
	}

	// Full miss: schedule recomputation, never block the caller.
	if schedErr := r.cfg.Scheduler.Schedule(key, r.cfg.Priority); schedErr != nil {
		return Resolution{State: Miss}, fmt.Errorf("failed to schedule computation: %w", schedErr)
	}

	if preferTranslated && key.Translated() {
		// Serve the untranslated page while the translation cooks.
		orig, err := r.lookup(ctx, key.Original())
		if err != nil {
			return Resolution{State: Pending}, err
		}
		if orig != nil {
			orig.Translated = false
			return *orig, nil
		}
	}

	return Resolution{State: Pending}, nil
}

// lookup probes tiers in fixed order, then the persistent store.
// Returns nil on a full miss.
func (r *Resolver) lookup(ctx context.Context, key models.CacheKey) (*Resolution, error) {
	for i, t := range r.cfg.Tiers {
		entry, ok := t.Get(key)
		if !ok {
			continue
		}
		if entry.Key.Fingerprint != key.Fingerprint {
			// Stale copy under an old source fingerprint; drop it.
			t.Delete(key)
			continue
		}

		r.promote(entry, i)
		return &Resolution{State: Ready, Artifact: entry.Artifact, Tier: t.Kind()}, nil
	}

	entry, err := r.cfg.Store.Get(ctx, key)
	if errors.Is(err, models.ErrStaleMetadata) {
		// Backing blob vanished; the admin surface cleans these up.
		r.cfg.Logger.Warn("stale metadata on read", "key", key.Encode())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	r.promote(entry, len(r.cfg.Tiers))
	return &Resolution{State: Ready, Artifact: entry.Artifact, Tier: models.TierPersistent}, nil
}

// promote copies a hit upward into every faster tier asynchronously.
// Promotion failures (a full bounded tier) are skipped, not surfaced.
func (r *Resolver) promote(entry *models.CacheEntry, hitIndex int) {
	if hitIndex == 0 {
		return
	}

	snapshot := entry.Clone()
	faster := r.cfg.Tiers[:hitIndex]
	go func() {
		for _, t := range faster {
			if err := t.Put(snapshot); err != nil {
				r.cfg.Logger.Debug("promotion skipped",
					"key", snapshot.Key.Encode(), "tier", t.Kind().String(), "error", err)
			}
		}
	}()
}

// PromoteComputed pushes a freshly computed entry into every fast tier.
// Wired as the coordinator's completion hook.
func (r *Resolver) PromoteComputed(entry *models.CacheEntry) {
	r.promote(entry, len(r.cfg.Tiers))
}
