package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driving"
)

// Ensure Reconciler implements the driving interface
var _ driving.StatusReconciler = (*Reconciler)(nil)

// Reconciler periodically probes the provider for the real status of every
// relevant connection and folds the answer back into the store. Probes run
// in small concurrent batches; at most one pass is in flight at a time.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance reconciles per cycle.
type Reconciler struct {
	store    driven.ConnectionStore
	provider driven.LinkProvider
	notifier driven.Notifier
	lock     driven.DistributedLock
	logger   *slog.Logger

	// onChange fires on every confirmed state change; onRestored fires only
	// for the disconnected -> connected transition
	onChange   func(id string, state domain.LifecycleState)
	onRestored func(*domain.Connection)

	// Internal state
	mu       sync.RWMutex
	running  bool
	enabled  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	kickCh   chan struct{}
	interval time.Duration

	initialDelay time.Duration
	kickDelay    time.Duration
	batchSize    int
	probeTimeout time.Duration

	// inFlight guards against overlapping passes
	inFlight atomic.Bool
	lastRun  atomic.Int64

	// Lock configuration
	lockTTL time.Duration
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Store    driven.ConnectionStore
	Provider driven.LinkProvider
	Notifier driven.Notifier
	Lock     driven.DistributedLock // Optional: multi-instance coordination
	Logger   *slog.Logger

	Interval     time.Duration // Probe cadence (default: 30s)
	InitialDelay time.Duration // Delay before the first pass (default: 5s)
	KickDelay    time.Duration // Debounce window for Kick (default: 2s)
	BatchSize    int           // Concurrent probes per batch (default: 3)
	ProbeTimeout time.Duration // Per-probe provider timeout (default: 10s)
	LockTTL      time.Duration // TTL for the distributed lock (default: 60s)

	// OnChange is called with every confirmed state change (optional)
	OnChange func(id string, state domain.LifecycleState)

	// OnRestored is called when a connection comes back (optional)
	OnRestored func(*domain.Connection)
}

// NewReconciler creates a new reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	initialDelay := cfg.InitialDelay
	if initialDelay == 0 {
		initialDelay = 5 * time.Second
	}

	kickDelay := cfg.KickDelay
	if kickDelay == 0 {
		kickDelay = 2 * time.Second
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = 10 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 60 * time.Second
	}

	return &Reconciler{
		store:        cfg.Store,
		provider:     cfg.Provider,
		notifier:     cfg.Notifier,
		lock:         cfg.Lock,
		logger:       logger,
		onChange:     cfg.OnChange,
		onRestored:   cfg.OnRestored,
		enabled:      true,
		interval:     interval,
		initialDelay: initialDelay,
		kickDelay:    kickDelay,
		batchSize:    batchSize,
		probeTimeout: probeTimeout,
		lockTTL:      lockTTL,
	}
}

// Start begins the reconciliation loop.
// It runs until Stop is called or context is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.kickCh = make(chan struct{}, 1)
	r.mu.Unlock()

	r.logger.Info("reconciler starting", "interval", r.interval, "batch_size", r.batchSize)

	go r.run(ctx)

	return nil
}

// Stop gracefully stops the reconciler.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.mu.Unlock()

	<-r.doneCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.logger.Info("reconciler stopped")
}

// Kick schedules a near-term pass. Multiple kicks inside the debounce window
// collapse into one.
func (r *Reconciler) Kick() {
	r.mu.RLock()
	kickCh := r.kickCh
	running := r.running
	r.mu.RUnlock()
	if !running {
		return
	}
	select {
	case kickCh <- struct{}{}:
	default:
	}
}

// SetEnabled pauses or resumes the periodic loop. A paused reconciler still
// honors CheckNow.
func (r *Reconciler) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()
	r.logger.Info("reconciler toggled", "enabled", enabled)
}

// LastRun reports when the last pass finished (zero if never).
func (r *Reconciler) LastRun() time.Time {
	nanos := r.lastRun.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// CheckNow runs a reconciliation pass immediately. With force set, every
// connection is probed instead of only the watched ones.
func (r *Reconciler) CheckNow(ctx context.Context, force bool) (*driving.ReconcileReport, error) {
	return r.reconcile(ctx, force)
}

// run is the main reconciliation loop.
func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	// Give the provider a moment after startup before the first pass
	initial := time.NewTimer(r.initialDelay)
	defer initial.Stop()

	select {
	case <-ctx.Done():
		return
	case <-r.stopCh:
		return
	case <-initial.C:
	}

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler context cancelled")
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.tick(ctx)
		case <-r.kickCh:
			// Debounce: wait out the burst, then run one pass
			if !r.sleep(ctx, r.kickDelay) {
				return
			}
			r.drainKicks()
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	r.mu.RLock()
	enabled := r.enabled
	r.mu.RUnlock()
	if !enabled {
		return
	}

	if _, err := r.reconcile(ctx, false); err != nil && err != domain.ErrCheckInProgress {
		r.logger.Error("reconciliation pass failed", "error", err)
	}
}

// sleep waits for d, returning false if the loop should exit.
func (r *Reconciler) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (r *Reconciler) drainKicks() {
	for {
		select {
		case <-r.kickCh:
		default:
			return
		}
	}
}

// reconcile performs one pass: pick candidates, probe them in batches, fold
// confirmed answers back into the store. Only one pass runs at a time; a
// second caller gets ErrCheckInProgress.
func (r *Reconciler) reconcile(ctx context.Context, force bool) (*driving.ReconcileReport, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return &driving.ReconcileReport{Skipped: true}, domain.ErrCheckInProgress
	}
	defer r.inFlight.Store(false)

	// Attempt to acquire distributed lock if configured
	if r.lock != nil {
		acquired, err := r.lock.Acquire(ctx, "reconciler", r.lockTTL)
		if err != nil {
			r.logger.Warn("failed to acquire reconciler lock", "error", err)
			return &driving.ReconcileReport{Skipped: true}, nil
		}
		if !acquired {
			r.logger.Debug("reconciler lock held by another instance, skipping cycle")
			return &driving.ReconcileReport{Skipped: true}, nil
		}
		defer func() {
			if err := r.lock.Release(ctx, "reconciler"); err != nil {
				r.logger.Warn("failed to release reconciler lock", "error", err)
			}
		}()
	}

	startedAt := time.Now()

	candidates, err := r.candidates(ctx, force)
	if err != nil {
		return nil, err
	}

	report := &driving.ReconcileReport{StartedAt: startedAt}

	for start := 0; start < len(candidates); start += r.batchSize {
		end := start + r.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var (
			wg      sync.WaitGroup
			changed atomic.Int64
		)
		for _, conn := range candidates[start:end] {
			wg.Add(1)
			go func(conn *domain.Connection) {
				defer wg.Done()
				if r.reconcileOne(ctx, conn) {
					changed.Add(1)
				}
			}(conn)
		}
		wg.Wait()

		report.Checked += end - start
		report.Changed += int(changed.Load())

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
	}

	r.lastRun.Store(time.Now().UnixNano())

	r.logger.Info("reconciliation pass complete",
		"checked", report.Checked,
		"changed", report.Changed,
		"force", force,
		"duration", time.Since(startedAt),
	)
	return report, nil
}

// candidates selects which connections a pass will probe. The normal cadence
// only watches connections believed linked or mid-link; forced passes probe
// everything.
func (r *Reconciler) candidates(ctx context.Context, force bool) ([]*domain.Connection, error) {
	conns, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if force {
		return conns, nil
	}

	watched := conns[:0]
	for _, conn := range conns {
		switch conn.State {
		case domain.StateConnected, domain.StatePending, domain.StateAwaitingScan:
			watched = append(watched, conn)
		}
	}
	return watched, nil
}

// reconcileOne probes one connection and applies the confirmed transition, if
// any. Returns true when a state change was written.
func (r *Reconciler) reconcileOne(ctx context.Context, conn *domain.Connection) bool {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	outcome, err := r.provider.ProbeStatus(probeCtx, conn.Name)
	cancel()
	if err != nil {
		r.logger.Warn("status probe failed", "id", conn.ID, "name", conn.Name, "error", err)
		return false
	}

	// Indeterminate answers confirm nothing and write nothing
	newState := outcome.State.LifecycleState()
	if newState == domain.StatePending {
		return false
	}

	// An outstanding scan is already a transitional state
	current := conn.State
	if current == domain.StateAwaitingScan || current == domain.StateExpired {
		current = domain.StatePending
	}

	if newState == current {
		// No transition, but a probe that carries the full profile still
		// refreshes it
		if newState == domain.StateConnected && outcome.Profile.Complete() {
			if err := r.store.Update(ctx, conn.ID, domain.ConnectionUpdate{Profile: outcome.Profile}); err != nil {
				r.logger.Warn("profile refresh failed", "id", conn.ID, "error", err)
			}
		}
		return false
	}

	status := newState.StoreStatus()
	upd := domain.ConnectionUpdate{Status: &status, ClearQR: true}
	if newState == domain.StateDisconnected {
		// A device that dropped off leaves no profile behind
		upd.ClearProfile = true
		upd.ClearConnectedAt = true
	}
	if newState == domain.StateConnected {
		if outcome.Profile.Complete() {
			upd.Profile = outcome.Profile
		}
		if conn.ConnectedAt == nil {
			now := time.Now()
			upd.ConnectedAt = &now
		}
	}

	if err := r.store.Update(ctx, conn.ID, upd); err != nil {
		r.logger.Error("failed to persist reconciled status", "id", conn.ID, "error", err)
		return false
	}

	r.logger.Info("connection status reconciled",
		"id", conn.ID, "name", conn.Name, "from", conn.State, "to", newState)

	if r.onChange != nil {
		r.onChange(conn.ID, newState)
	}

	// Side effects are reserved for the two significant transitions
	switch {
	case current == domain.StateDisconnected && newState == domain.StateConnected:
		if r.onRestored != nil {
			if fresh, err := r.store.Get(ctx, conn.ID); err == nil {
				r.onRestored(fresh)
			}
		}
		r.notify(ctx, conn.OwnerID, domain.ConnectionRestored(conn))
	case current == domain.StateConnected && newState == domain.StateDisconnected:
		r.notify(ctx, conn.OwnerID, domain.ConnectionLost(conn))
	}
	return true
}

func (r *Reconciler) notify(ctx context.Context, ownerID string, n domain.Notification) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, ownerID, n); err != nil {
		r.logger.Warn("notification delivery failed", "owner", ownerID, "title", n.Title, "error", err)
	}
}
