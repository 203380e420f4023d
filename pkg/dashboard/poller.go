package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

// Source supplies the latest batch of readings, newest first
type Source interface {
	ListReadings(ctx context.Context) ([]models.Reading, error)
}

// DefaultLocations are the three stadium sensor positions
var DefaultLocations = []string{"centro", "porteriaderecha", "porteriaizquierda"}

const (
	DefaultPollInterval = 15 * time.Second
	defaultFetchTimeout = 10 * time.Second
)

// Options configures a Poller
type Options struct {
	Interval time.Duration
	// FetchTimeout bounds a single List call. Defaults to the smaller of
	// Interval and 10s.
	FetchTimeout time.Duration
	Locations    []string
	HistorySize  int
	// RequireAll withholds the average until every tracked location has a reading
	RequireAll bool
	Logger     *slog.Logger
	// OnUpdate is called with each new snapshot after a successful fetch
	OnUpdate func(Snapshot)
}

// LocationState is the view of one tracked location
type LocationState struct {
	Name    string
	Latest  *models.Reading
	History []Point
}

// Values returns the history values oldest first
func (l LocationState) Values() []float64 {
	return pointValues(l.History)
}

// Recent returns the history newest first
func (l LocationState) Recent() []Point {
	out := make([]Point, len(l.History))
	for i, p := range l.History {
		out[len(out)-1-i] = p
	}
	return out
}

// Snapshot is an immutable copy of the dashboard state
type Snapshot struct {
	Locations      []LocationState
	Batch          []models.Reading
	Average        *float64
	Recommendation string
	UpdatedAt      time.Time
	// LastErrorAt is when the most recent fetch failed. The error itself is
	// only logged.
	LastErrorAt time.Time
}

// Location returns the state for name, false when it is not tracked
func (s Snapshot) Location(name string) (LocationState, bool) {
	for _, l := range s.Locations {
		if l.Name == name {
			return l, true
		}
	}
	return LocationState{}, false
}

// Loaded reports whether at least one fetch has succeeded
func (s Snapshot) Loaded() bool {
	return !s.UpdatedAt.IsZero()
}

// Stale reports whether the latest fetch failed and no fetch has succeeded since
func (s Snapshot) Stale() bool {
	return !s.LastErrorAt.IsZero() && !s.LastErrorAt.Before(s.UpdatedAt)
}

// Poller periodically pulls readings from a Source and derives the
// per-location dashboard state.
type Poller struct {
	source Source
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	latest    map[string]models.Reading
	histories map[string]*History
	snapshot  Snapshot

	// generation of the most recently issued fetch; older results are dropped
	generation uint64

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewPoller creates a poller; call Start to begin polling
func NewPoller(source Source, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = min(opts.Interval, defaultFetchTimeout)
	}
	opts.Locations = uniqueLocations(opts.Locations)
	if len(opts.Locations) == 0 {
		opts.Locations = DefaultLocations
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Poller{
		source:    source,
		opts:      opts,
		logger:    opts.Logger.With("component", "dashboard-poller"),
		latest:    make(map[string]models.Reading),
		histories: make(map[string]*History, len(opts.Locations)),
		now:       time.Now,
	}
	for _, loc := range opts.Locations {
		p.histories[loc] = NewHistory(opts.HistorySize)
	}
	p.snapshot = p.buildSnapshotLocked()

	return p
}

// Start launches the polling loop and triggers an immediate first fetch.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(loopCtx)

	p.logger.Info("dashboard poller started", "interval", p.opts.Interval, "locations", p.opts.Locations)
}

// Stop cancels the loop and any in-flight fetch and waits for them to exit.
// It is safe to call more than once.
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.lifecycle.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	p.wg.Wait()
	p.logger.Info("dashboard poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	inflight := p.dispatch(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			inflight()
			return
		case <-ticker.C:
			inflight = p.dispatch(ctx, inflight)
		}
	}
}

// dispatch cancels the previous fetch and starts a new one in the background
func (p *Poller) dispatch(ctx context.Context, previous context.CancelFunc) context.CancelFunc {
	if previous != nil {
		previous()
	}

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		readings, err := p.source.ListReadings(fetchCtx)
		p.apply(gen, readings, err)
	}()

	return cancel
}

// Refresh performs one synchronous fetch and returns the resulting snapshot
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	readings, err := p.source.ListReadings(fetchCtx)
	p.apply(gen, readings, err)

	return p.Snapshot(), err
}

func (p *Poller) apply(gen uint64, readings []models.Reading, err error) {
	p.mu.Lock()

	if gen != p.generation {
		p.mu.Unlock()
		p.logger.Debug("discarding stale fetch result", "generation", gen)
		return
	}

	if err != nil {
		// Cancellation only happens on shutdown or when superseded
		if errors.Is(err, context.Canceled) {
			p.mu.Unlock()
			return
		}
		p.snapshot.LastErrorAt = p.now()
		p.mu.Unlock()

		p.logger.Warn("failed to fetch readings", "error", err)
		return
	}

	partitions := PartitionByLocation(readings)
	for _, loc := range p.opts.Locations {
		latest, ok := Latest(partitions[loc])
		if !ok {
			delete(p.latest, loc)
			continue
		}
		p.latest[loc] = latest
		p.histories[loc].Push(Point{Timestamp: latest.Timestamp, Value: latest.Value})
	}

	batch := make([]models.Reading, len(readings))
	copy(batch, readings)

	snap := p.buildSnapshotLocked()
	snap.Batch = batch
	snap.UpdatedAt = p.now()
	p.snapshot = snap

	onUpdate := p.opts.OnUpdate
	p.mu.Unlock()

	p.logger.Debug("dashboard updated", "readings", len(readings), "recommendation", snap.Recommendation)

	if onUpdate != nil {
		onUpdate(snap)
	}
}

// buildSnapshotLocked derives locations, average and recommendation from
// the current latest map. Caller holds p.mu.
func (p *Poller) buildSnapshotLocked() Snapshot {
	snap := Snapshot{
		Locations:   make([]LocationState, 0, len(p.opts.Locations)),
		LastErrorAt: p.snapshot.LastErrorAt,
	}

	var present []models.Reading
	for _, loc := range p.opts.Locations {
		state := LocationState{Name: loc, History: p.histories[loc].Points()}
		if r, ok := p.latest[loc]; ok {
			state.Latest = &r
			present = append(present, r)
		}
		snap.Locations = append(snap.Locations, state)
	}

	if p.opts.RequireAll && len(present) < len(p.opts.Locations) {
		present = nil
	}
	if avg, ok := Average(present...); ok {
		snap.Average = &avg
	}
	snap.Recommendation = Recommend(snap.Average)

	return snap
}

// Snapshot returns the current dashboard state
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

func uniqueLocations(locations []string) []string {
	seen := make(map[string]bool, len(locations))
	out := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, loc)
	}
	return out
}
