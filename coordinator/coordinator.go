package coordinator

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
	"github.com/kawayiYokami/HentaiReader-sub000/store"
)

// Translator is the external translation collaborator: slow, fallible,
// rate-limited. Successful output is treated as canonical once stored.
type Translator interface {
	Translate(ctx context.Context, req TranslateRequest) ([]byte, error)
}

// TranslateRequest carries one page to the collaborator.
type TranslateRequest struct {
	Source   []byte   // source page artifact
	Text     []string // extracted source text, substitutions applied
	Language string   // target language
}

// SourceProvider loads the source artifact and its extracted text for a
// key. OCR itself happens behind this contract.
type SourceProvider interface {
	Source(ctx context.Context, key models.CacheKey) (SourcePage, error)
}

// SourcePage is the untranslated input to a computation.
type SourcePage struct {
	Artifact []byte
	Text     []string
}

// SubstitutionSource supplies the substitution map. A snapshot is taken
// when a request is created; edits never affect in-flight computations.
type SubstitutionSource interface {
	Substitutions(ctx context.Context) ([]models.SubstitutionMapping, error)
}

// Result is delivered identically to every waiter of a computation.
type Result struct {
	Entry *models.CacheEntry
	Err   error
}

// Config holds configuration for the Coordinator
type Config struct {
	Translator    Translator
	Sources       SourceProvider
	Substitutions SubstitutionSource // optional
	Store         *store.Store
	OnComplete    func(*models.CacheEntry) // promotion hook, optional
	Workers       int                      // defaults to 2
	MaxRetries    int                      // provider failures retried this many times
	Deadline      time.Duration            // per-attempt computation deadline, defaults to 2m
	Logger        *slog.Logger
}

// Coordinator schedules translation computations with per-key request
// coalescing: at most one computation is ever in flight per cache key.
// The pending table doubles as the per-key mutex; unrelated keys never
// serialize against each other.
type Coordinator struct {
	cfg Config

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string]*pending
	queue   requestQueue
	seq     uint64
	nextID  uint64
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pending is one outstanding computation plus its attached waiters.
type pending struct {
	key         models.CacheKey
	priority    int
	seq         uint64 // FIFO tiebreak within a priority
	requestedAt time.Time
	attempts    int
	waiters     map[uint64]chan Result
	subs        []models.SubstitutionMapping // snapshot at request start
	cancel      context.CancelFunc           // set while computing
	index       int                          // heap index, -1 when not queued
}

// New creates a Coordinator and starts its worker pool.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Translator == nil {
		return nil, fmt.Errorf("Translator is required")
	}
	if cfg.Sources == nil {
		return nil, fmt.Errorf("Sources is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:     cfg,
		pending: make(map[string]*pending),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.cond = sync.NewCond(&c.mu)

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}
	return c, nil
}

// Request schedules a computation for key, or attaches to the one
// already in flight. Higher priorities are dequeued first; ties break
// FIFO. The returned handle delivers exactly one Result.
func (c *Coordinator) Request(key models.CacheKey, priority int) (*Handle, error) {
	subs := c.snapshotSubstitutions()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, models.ErrClosed
	}

	k := key.Encode()
	p, ok := c.pending[k]
	if !ok {
		c.seq++
		p = &pending{
			key:         key,
			priority:    priority,
			seq:         c.seq,
			requestedAt: time.Now().UTC(),
			waiters:     make(map[uint64]chan Result),
			subs:        subs,
			index:       -1,
		}
		c.pending[k] = p
		heap.Push(&c.queue, p)
		c.cond.Signal()
	} else if priority > p.priority && p.index >= 0 {
		// A reader navigated to this page; bump the queued request.
		p.priority = priority
		heap.Fix(&c.queue, p.index)
	}

	c.nextID++
	ch := make(chan Result, 1)
	p.waiters[c.nextID] = ch

	return &Handle{coord: c, p: p, id: c.nextID, ch: ch}, nil
}

// Schedule is Request for callers that poll instead of waiting, e.g. the
// resolver returning a Pending result.
func (c *Coordinator) Schedule(key models.CacheKey, priority int) error {
	_, err := c.Request(key, priority)
	return err
}

// PendingCount returns the number of outstanding computations.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close fails queued requests, cancels in-flight computations and waits
// for the workers to exit.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	var queued []*pending
	for c.queue.Len() > 0 {
		p := heap.Pop(&c.queue).(*pending)
		p.index = -1
		queued = append(queued, p)
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	for _, p := range queued {
		c.finish(p, Result{Err: models.ErrClosed})
	}

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Coordinator) snapshotSubstitutions() []models.SubstitutionMapping {
	if c.cfg.Substitutions == nil {
		return nil
	}
	subs, err := c.cfg.Substitutions.Substitutions(c.ctx)
	if err != nil {
		c.cfg.Logger.Error("failed to snapshot substitutions", "error", err)
		return nil
	}
	return subs
}

func (c *Coordinator) worker() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		for c.queue.Len() == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}

		p := heap.Pop(&c.queue).(*pending)
		p.index = -1
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Deadline)
		p.cancel = cancel
		c.mu.Unlock()

		c.process(ctx, p)
		cancel()
	}
}

func (c *Coordinator) process(ctx context.Context, p *pending) {
	src, err := c.cfg.Sources.Source(ctx, p.key)
	if err != nil {
		c.handleFailure(ctx, p, fmt.Errorf("source load: %w", err))
		return
	}

	// Untranslated keys cache the source page as-is; only translated
	// keys involve the collaborator.
	artifact := src.Artifact
	if p.key.Translated() {
		artifact, err = c.cfg.Translator.Translate(ctx, TranslateRequest{
			Source:   src.Artifact,
			Text:     applySubstitutions(p.subs, src.Text),
			Language: p.key.Language,
		})
		if err != nil {
			c.handleFailure(ctx, p, err)
			return
		}
	}

	if !c.live(p) {
		// Every waiter cancelled while the collaborator was running;
		// the completed result is discarded.
		return
	}

	entry := models.NewEntry(p.key, artifact, models.TierPersistent)
	if err := c.cfg.Store.Put(c.ctx, entry); err != nil {
		c.cfg.Logger.Error("failed to persist computed artifact",
			"key", p.key.Encode(), "error", err)
		c.finish(p, Result{Err: err})
		return
	}

	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(entry.Clone())
	}
	c.finish(p, Result{Entry: entry})
}

// handleFailure requeues provider failures within the retry budget.
// Timeouts and cancellations are terminal.
func (c *Coordinator) handleFailure(ctx context.Context, p *pending, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.finish(p, Result{Err: fmt.Errorf("%w: %v", models.ErrTimeout, err)})
		return
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		// Last waiter cancelled, or shutdown. Discard quietly.
		c.finish(p, Result{Err: models.ErrClosed})
		return
	}

	c.mu.Lock()
	p.attempts++
	if cur, ok := c.pending[p.key.Encode()]; !ok || cur != p {
		c.mu.Unlock()
		return // detached while running, nothing to notify
	}
	if p.attempts <= c.cfg.MaxRetries && !c.closed {
		p.cancel = nil
		heap.Push(&c.queue, p)
		c.cond.Signal()
		c.mu.Unlock()
		c.cfg.Logger.Warn("translation failed, requeued",
			"key", p.key.Encode(), "attempt", p.attempts, "error", err)
		return
	}
	attempts := p.attempts
	c.mu.Unlock()

	c.finish(p, Result{Err: fmt.Errorf("%w after %d attempts: %v", models.ErrProvider, attempts, err)})
}

// live reports whether p is still the registered pending request for
// its key.
func (c *Coordinator) live(p *pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.pending[p.key.Encode()]
	return ok && cur == p
}

// finish removes the pending request and delivers the same result to
// every remaining waiter.
func (c *Coordinator) finish(p *pending, res Result) {
	c.mu.Lock()
	k := p.key.Encode()
	if cur, ok := c.pending[k]; ok && cur == p {
		delete(c.pending, k)
	}
	waiters := p.waiters
	p.waiters = nil
	p.cancel = nil
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
}

// detach removes one waiter. When the last waiter leaves, a queued
// request is dropped and a running computation is cancelled.
func (c *Coordinator) detach(p *pending, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := p.key.Encode()
	if cur, ok := c.pending[k]; !ok || cur != p {
		return // already completed
	}
	delete(p.waiters, id)
	if len(p.waiters) > 0 {
		return
	}

	delete(c.pending, k)
	if p.index >= 0 {
		heap.Remove(&c.queue, p.index)
		p.index = -1
	} else if p.cancel != nil {
		p.cancel()
	}
}

// applySubstitutions rewrites extracted text with the snapshot taken at
// request start. Longer originals apply first so overlapping mappings
// resolve deterministically.
func applySubstitutions(subs []models.SubstitutionMapping, text []string) []string {
	if len(subs) == 0 || len(text) == 0 {
		return text
	}

	ordered := make([]models.SubstitutionMapping, len(subs))
	copy(ordered, subs)
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i].Original) != len(ordered[j].Original) {
			return len(ordered[i].Original) > len(ordered[j].Original)
		}
		return ordered[i].Original < ordered[j].Original
	})

	out := make([]string, len(text))
	for i, line := range text {
		for _, sub := range ordered {
			line = strings.ReplaceAll(line, sub.Original, sub.Replacement)
		}
		out[i] = line
	}
	return out
}
