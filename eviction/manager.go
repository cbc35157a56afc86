package eviction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kawayiYokami/HentaiReader-sub000/tier"
)

// Policy bounds one in-memory tier. A zero MaxAge disables TTL
// expiration; a zero MaxEntries disables capacity trimming.
type Policy struct {
	Tier       tier.Tier
	MaxAge     time.Duration
	MaxEntries int
}

// Config holds configuration for the Manager
type Config struct {
	Interval time.Duration // defaults to 1m
	Policies []Policy
	Logger   *slog.Logger
}

// Manager trims the in-memory tiers on a fixed interval, independent of
// request traffic: TTL expiration first, then least-recently-accessed
// eviction back under the entry budget. It never touches the persistent
// tier; durability there is a hard guarantee, only administrative
// deletion and fingerprint invalidation remove persisted entries.
type Manager struct {
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if len(cfg.Policies) == 0 {
		return nil, fmt.Errorf("at least one policy is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

// Start launches the background eviction loop.
func (m *Manager) Start() {
	if m.started {
		return
	}
	m.started = true

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.RunOnce()
			}
		}
	}()
}

// Stop shuts down the eviction loop. Safe to call without Start.
func (m *Manager) Stop() {
	m.cancel()
	if m.started {
		<-m.done
	}
}

// RunOnce applies every policy a single time and returns the number of
// entries removed. Exposed for tests and manual passes.
func (m *Manager) RunOnce() int {
	removed := 0
	now := time.Now().UTC()

	for _, policy := range m.cfg.Policies {
		expired := m.expire(policy, now)
		trimmed := m.trim(policy)
		removed += expired + trimmed

		if expired+trimmed > 0 {
			m.cfg.Logger.Debug("eviction pass",
				"tier", policy.Tier.Kind().String(),
				"expired", expired, "trimmed", trimmed,
				"remaining", policy.Tier.Len())
		}
	}
	return removed
}

// expire removes entries older than the policy's max age.
func (m *Manager) expire(policy Policy, now time.Time) int {
	if policy.MaxAge <= 0 {
		return 0
	}

	removed := 0
	for _, entry := range policy.Tier.Entries() {
		if entry.ExpiredAt(now, policy.MaxAge) {
			policy.Tier.Delete(entry.Key)
			removed++
		}
	}
	return removed
}

// trim evicts least-recently-accessed entries until the tier is back
// under its entry budget.
func (m *Manager) trim(policy Policy) int {
	if policy.MaxEntries <= 0 {
		return 0
	}

	over := policy.Tier.Len() - policy.MaxEntries
	if over <= 0 {
		return 0
	}

	entries := policy.Tier.Entries()
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.Before(entries[j].LastAccessedAt)
	})

	removed := 0
	for _, entry := range entries {
		if removed >= over {
			break
		}
		policy.Tier.Delete(entry.Key)
		removed++
	}
	return removed
}
