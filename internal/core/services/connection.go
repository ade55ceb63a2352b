package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driving"
)

// Ensure ConnectionService implements the driving interface
var _ driving.ConnectionService = (*ConnectionService)(nil)

// ConnectionService drives the WhatsApp-linking lifecycle. While a QR code is
// outstanding it runs a watch goroutine per connection that polls the
// provider for the linked profile and expires the QR on its deadline. The
// store only ever sees confirmed states; "awaiting scan" and "expired" live
// in the watch overlay.
type ConnectionService struct {
	store    driven.ConnectionStore
	provider driven.LinkProvider
	logger   *slog.Logger

	qrTTL        time.Duration
	pollInterval time.Duration
	probeTimeout time.Duration

	// onLinked is invoked after a watch confirms a device link
	onLinked func(*domain.Connection)

	// onWatchActivity is invoked when the first scan starts and when the
	// last one ends
	onWatchActivity func(active bool)

	// now is swappable for tests
	now func() time.Time

	mu         sync.Mutex
	watches    map[string]*watch
	lastActive bool
	wg         sync.WaitGroup
}

// watch is the in-memory scan state of one connection.
type watch struct {
	cancel  context.CancelFunc
	qr      *domain.QRCode
	expired bool
	linked  bool
}

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	Store    driven.ConnectionStore
	Provider driven.LinkProvider
	Logger   *slog.Logger

	QRTTL        time.Duration // Scan window per QR code (default: 60s)
	PollInterval time.Duration // Profile poll cadence while scanning (default: 3s)
	ProbeTimeout time.Duration // Per-call provider timeout (default: 10s)

	// OnLinked is called after a poll confirms the link (optional)
	OnLinked func(*domain.Connection)

	// OnWatchActivity is called with true when the first scan starts and
	// false when the last one ends (optional). The composition root uses it
	// to pause background reconciliation while a scan flow is active.
	OnWatchActivity func(active bool)
}

// NewConnectionService creates a new ConnectionService.
func NewConnectionService(cfg ConnectionServiceConfig) *ConnectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qrTTL := cfg.QRTTL
	if qrTTL == 0 {
		qrTTL = 60 * time.Second
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 3 * time.Second
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = 10 * time.Second
	}

	return &ConnectionService{
		store:           cfg.Store,
		provider:        cfg.Provider,
		logger:          logger,
		qrTTL:           qrTTL,
		pollInterval:    pollInterval,
		probeTimeout:    probeTimeout,
		onLinked:        cfg.OnLinked,
		onWatchActivity: cfg.OnWatchActivity,
		now:             time.Now,
		watches:         make(map[string]*watch),
	}
}

// Create validates the name, registers the instance with the provider and
// persists the connection awaiting its first scan.
func (s *ConnectionService) Create(ctx context.Context, ownerID string, req driving.CreateConnectionRequest) (*domain.Connection, error) {
	if err := domain.ValidateConnectionName(req.Name); err != nil {
		return nil, err
	}

	if existing, err := s.store.GetByName(ctx, req.Name); err == nil && existing != nil {
		return nil, domain.ErrAlreadyExists
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Provider registration fails hard: without an instance there is
	// nothing to persist.
	result, err := s.provider.CreateInstance(ctx, req.Name)
	if err != nil {
		s.logger.Error("instance creation failed", "name", req.Name, "error", err)
		return nil, err
	}

	now := s.now()
	qr := &domain.QRCode{
		Image:     result.QRImage,
		Code:      result.QRCode,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.qrTTL),
	}

	conn := &domain.Connection{
		Name:      req.Name,
		OwnerID:   ownerID,
		State:     domain.StateAwaitingScan,
		QR:        qr,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, conn); err != nil {
		// Roll back the instance so the name is reusable
		_ = s.provider.Remove(ctx, req.Name)
		return nil, err
	}

	s.logger.Info("connection created", "id", conn.ID, "name", conn.Name)

	s.startWatch(conn.ID, conn.Name, conn.OwnerID, qr)
	return conn, nil
}

// Get retrieves a connection with the live scan state overlaid.
func (s *ConnectionService) Get(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.overlay(conn)
	return conn, nil
}

// List retrieves the connections of one owner, newest first.
func (s *ConnectionService) List(ctx context.Context, ownerID string) ([]*domain.Connection, error) {
	conns, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		s.overlay(conn)
	}
	return conns, nil
}

// ListAll retrieves every connection (admin only).
func (s *ConnectionService) ListAll(ctx context.Context) ([]*domain.Connection, error) {
	conns, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		s.overlay(conn)
	}
	return conns, nil
}

// RequestQR fetches a fresh QR code and restarts the scan window.
func (s *ConnectionService) RequestQR(ctx context.Context, id string) (*domain.QRCode, error) {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.State == domain.StateConnected {
		return nil, domain.ErrInvalidInput
	}

	payload, err := s.provider.FetchQR(ctx, conn.Name)
	if err != nil {
		s.logger.Error("qr fetch failed", "id", id, "name", conn.Name, "error", err)
		return nil, err
	}

	now := s.now()
	qr := &domain.QRCode{
		Image:     payload.Image,
		Code:      payload.Code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.qrTTL),
	}

	status := domain.StoreStatusConnecting
	if err := s.store.Update(ctx, id, domain.ConnectionUpdate{Status: &status, QR: qr}); err != nil {
		return nil, err
	}

	s.startWatch(id, conn.Name, conn.OwnerID, qr)
	return qr, nil
}

// CancelScan abandons an in-progress scan. Safe to call when no scan is
// running.
func (s *ConnectionService) CancelScan(ctx context.Context, id string) error {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.stopWatch(id)

	if conn.State == domain.StateConnected {
		return nil
	}

	status := domain.StoreStatusDisconnected
	return s.store.Update(ctx, id, domain.ConnectionUpdate{Status: &status, ClearQR: true})
}

// ConfirmLinked checks whether a device has linked. The transition to
// connected is persisted at most once; repeated calls after that return the
// stored connection unchanged.
func (s *ConnectionService) ConfirmLinked(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Already confirmed: nothing to write
	if conn.State == domain.StateConnected && conn.Profile.Complete() {
		return conn, nil
	}

	// A lapsed scan window cannot be confirmed; the caller must request a
	// fresh QR first
	s.mu.Lock()
	w, watching := s.watches[id]
	expired := watching && w.expired
	s.mu.Unlock()
	if expired {
		s.overlay(conn)
		return conn, nil
	}

	profile, err := s.provider.FetchProfile(ctx, conn.Name)
	if err != nil {
		s.logger.Warn("profile fetch failed", "id", id, "name", conn.Name, "error", err)
		s.overlay(conn)
		return conn, nil
	}

	// A partial profile means the device has not finished linking
	if !profile.Complete() {
		s.overlay(conn)
		return conn, nil
	}

	if err := s.persistLinked(ctx, id, profile); err != nil {
		return nil, err
	}
	s.stopWatch(id)

	return s.store.Get(ctx, id)
}

// Disconnect unlinks the device. The provider call is best-effort: local
// state wins even when the remote side is unreachable.
func (s *ConnectionService) Disconnect(ctx context.Context, id string) error {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.stopWatch(id)

	if err := s.provider.Disconnect(ctx, conn.Name); err != nil {
		s.logger.Warn("provider disconnect failed, applying local state anyway",
			"id", id, "name", conn.Name, "error", err)
	}

	status := domain.StoreStatusDisconnected
	return s.store.Update(ctx, id, domain.ConnectionUpdate{
		Status:           &status,
		ClearProfile:     true,
		ClearConnectedAt: true,
		ClearQR:          true,
	})
}

// Delete removes the connection locally and best-effort on the provider.
func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	conn, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.stopWatch(id)

	if err := s.provider.Remove(ctx, conn.Name); err != nil {
		s.logger.Warn("provider removal failed, deleting locally anyway",
			"id", id, "name", conn.Name, "error", err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("connection deleted", "id", id, "name", conn.Name)
	return nil
}

// Shutdown stops every running watch and waits for them to finish.
func (s *ConnectionService) Shutdown() {
	s.mu.Lock()
	for id, w := range s.watches {
		w.cancel()
		delete(s.watches, id)
	}
	s.mu.Unlock()

	s.notifyActivity()
	s.wg.Wait()
}

// overlay replaces the stored state with the live scan state when a watch is
// tracking this connection.
func (s *ConnectionService) overlay(conn *domain.Connection) {
	s.mu.Lock()
	w, ok := s.watches[conn.ID]
	s.mu.Unlock()
	if !ok || conn.State == domain.StateConnected {
		return
	}

	if w.expired {
		conn.State = domain.StateExpired
		conn.QR = nil
		return
	}
	conn.State = domain.StateAwaitingScan
	conn.QR = w.qr
}

// startWatch replaces any existing watch for the connection with a fresh one
// covering the given QR window.
func (s *ConnectionService) startWatch(id, name, ownerID string, qr *domain.QRCode) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{cancel: cancel, qr: qr}

	s.mu.Lock()
	if old, ok := s.watches[id]; ok {
		old.cancel()
	}
	s.watches[id] = w
	s.mu.Unlock()

	s.notifyActivity()

	s.wg.Add(1)
	go s.runWatch(ctx, w, id, name, ownerID, qr)
}

// stopWatch cancels and forgets the watch for a connection, if any.
func (s *ConnectionService) stopWatch(id string) {
	s.mu.Lock()
	if w, ok := s.watches[id]; ok {
		w.cancel()
		delete(s.watches, id)
	}
	s.mu.Unlock()

	s.notifyActivity()
}

// notifyActivity reports scan activity edges to the callback. An expired
// watch no longer counts as active even though it stays registered for the
// state overlay.
func (s *ConnectionService) notifyActivity() {
	if s.onWatchActivity == nil {
		return
	}

	s.mu.Lock()
	active := false
	for _, w := range s.watches {
		if !w.expired {
			active = true
			break
		}
	}
	changed := active != s.lastActive
	s.lastActive = active
	s.mu.Unlock()

	if changed {
		s.onWatchActivity(active)
	}
}

// runWatch polls the provider for a linked profile until the device links,
// the QR deadline passes or the watch is cancelled. The deadline is a timer,
// not a poll-time comparison, so expiry fires on time even if polling stalls.
func (s *ConnectionService) runWatch(ctx context.Context, w *watch, id, name, ownerID string, qr *domain.QRCode) {
	defer s.wg.Done()

	expiry := time.NewTimer(qr.Remaining(s.now()))
	defer expiry.Stop()

	// First probe fires right away; the ticker covers the rest of the window
	if s.pollOnce(ctx, w, id, name) {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-expiry.C:
			s.mu.Lock()
			w.expired = true
			s.mu.Unlock()
			s.notifyActivity()
			s.logger.Info("qr code expired", "id", id, "name", name)
			return

		case <-ticker.C:
			if s.pollOnce(ctx, w, id, name) {
				return
			}
		}
	}
}

// pollOnce performs one profile poll. Returns true when the link was
// confirmed and the watch should stop.
func (s *ConnectionService) pollOnce(ctx context.Context, w *watch, id, name string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	profile, err := s.provider.FetchProfile(probeCtx, name)
	cancel()
	if err != nil {
		s.logger.Debug("profile poll failed", "id", id, "error", err)
		return false
	}
	if !profile.Complete() {
		return false
	}

	if err := s.persistLinked(ctx, id, profile); err != nil {
		s.logger.Error("failed to persist link", "id", id, "error", err)
		return false
	}

	s.mu.Lock()
	w.linked = true
	delete(s.watches, id)
	s.mu.Unlock()

	s.notifyActivity()

	s.logger.Info("device linked", "id", id, "name", name, "contact", profile.Contact)

	if s.onLinked != nil {
		if conn, err := s.store.Get(ctx, id); err == nil {
			s.onLinked(conn)
		}
	}
	return true
}

// persistLinked writes the connected transition: active status, the full
// profile, the link timestamp, and no more QR.
func (s *ConnectionService) persistLinked(ctx context.Context, id string, profile *domain.Profile) error {
	status := domain.StoreStatusActive
	connectedAt := s.now()
	return s.store.Update(ctx, id, domain.ConnectionUpdate{
		Status:      &status,
		Profile:     profile,
		ConnectedAt: &connectedAt,
		ClearQR:     true,
	})
}
