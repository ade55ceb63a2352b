package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driven/mocks"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driving"
)

func newTestConnectionService(store *mocks.MockConnectionStore, provider *mocks.MockLinkProvider) *ConnectionService {
	return NewConnectionService(ConnectionServiceConfig{
		Store:        store,
		Provider:     provider,
		QRTTL:        time.Minute,
		PollInterval: time.Hour, // Polling driven manually unless a test lowers this
	})
}

func seedConnection(t *testing.T, store *mocks.MockConnectionStore, name string, state domain.LifecycleState) *domain.Connection {
	t.Helper()
	conn := &domain.Connection{
		Name:      name,
		OwnerID:   "owner-1",
		State:     state,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := store.Create(context.Background(), conn); err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}
	return conn
}

func TestConnectionService_Create(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)
	defer svc.Shutdown()

	conn, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas-whatsapp"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if conn.ID == "" {
		t.Error("expected assigned ID")
	}
	if conn.State != domain.StateAwaitingScan {
		t.Errorf("expected awaiting scan, got %s", conn.State)
	}
	if conn.QR == nil || conn.QR.Image == "" {
		t.Fatal("expected QR code on creation")
	}
	if got := conn.QR.ExpiresAt.Sub(conn.QR.IssuedAt); got != time.Minute {
		t.Errorf("expected 1m scan window, got %v", got)
	}
	if provider.CreateCalls != 1 {
		t.Errorf("expected 1 provider create call, got %d", provider.CreateCalls)
	}

	// The watch overlay should report the live scan state
	got, err := svc.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.State != domain.StateAwaitingScan {
		t.Errorf("expected overlay state awaiting scan, got %s", got.State)
	}
}

func TestConnectionService_Create_InvalidName(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	_, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "my name"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	// Validation failures must leave no trace
	if provider.CreateCalls != 0 {
		t.Error("provider must not be called for an invalid name")
	}
	if store.Count() != 0 {
		t.Error("store must stay empty")
	}
}

func TestConnectionService_Create_DuplicateName(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	seedConnection(t, store, "vendas", domain.StateConnected)

	_, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if provider.CreateCalls != 0 {
		t.Error("provider must not be called for a duplicate name")
	}
}

func TestConnectionService_Create_ProviderFailure(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	provider.CreateInstanceFn = func(name string) (*driven.CreateInstanceResult, error) {
		return nil, &domain.RemoteError{Op: "create", StatusCode: 500}
	}
	svc := newTestConnectionService(store, provider)

	_, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected provider error, got %v", err)
	}

	// A failed remote registration must not leave an orphan record
	if store.Count() != 0 {
		t.Error("store must stay empty when the provider rejects creation")
	}
}

func TestConnectionService_ConfirmLinked(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	conn := seedConnection(t, store, "vendas", domain.StateAwaitingScan)

	// Partial profile: the device has not finished linking
	provider.FetchProfileFn = func(name string) (*domain.Profile, error) {
		return &domain.Profile{DisplayName: "Vendas", Contact: "+5511999999999"}, nil
	}

	got, err := svc.ConfirmLinked(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if got.State == domain.StateConnected {
		t.Error("partial profile must not confirm the link")
	}
	if store.UpdateCount() != 0 {
		t.Error("partial profile must not write to the store")
	}

	// Full profile: the link is confirmed and persisted
	provider.FetchProfileFn = func(name string) (*domain.Profile, error) {
		return &domain.Profile{
			DisplayName: "Vendas",
			Contact:     "+5511999999999",
			AvatarURL:   "https://cdn/p.jpg",
		}, nil
	}

	got, err = svc.ConfirmLinked(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if got.State != domain.StateConnected {
		t.Fatalf("expected connected, got %s", got.State)
	}

	upd := store.LastUpdate()
	if upd == nil {
		t.Fatal("expected a store write")
	}
	if upd.Update.Status == nil || *upd.Update.Status != domain.StoreStatusActive {
		t.Error("expected status active")
	}
	if upd.Update.Profile == nil || !upd.Update.Profile.Complete() {
		t.Error("expected the full profile in the same write")
	}
	if upd.Update.ConnectedAt == nil {
		t.Error("expected the link timestamp")
	}
	if !upd.Update.ClearQR {
		t.Error("expected the QR to be cleared")
	}
}

func TestConnectionService_ConfirmLinked_Idempotent(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	full := &domain.Profile{DisplayName: "Vendas", Contact: "+5511999999999", AvatarURL: "https://cdn/p.jpg"}
	provider.FetchProfileFn = func(name string) (*domain.Profile, error) { return full, nil }

	conn := seedConnection(t, store, "vendas", domain.StateAwaitingScan)

	if _, err := svc.ConfirmLinked(context.Background(), conn.ID); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	writes := store.UpdateCount()
	probes := provider.ProfileCalls

	// Confirmed connections short-circuit: no probe, no write
	if _, err := svc.ConfirmLinked(context.Background(), conn.ID); err != nil {
		t.Fatalf("second confirm failed: %v", err)
	}
	if store.UpdateCount() != writes {
		t.Error("repeated confirm must not write again")
	}
	if provider.ProfileCalls != probes {
		t.Error("repeated confirm must not probe again")
	}
}

func TestConnectionService_ConfirmLinked_ProbeFailure(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	provider.FetchProfileFn = func(name string) (*domain.Profile, error) {
		return nil, errors.New("connection refused")
	}
	svc := newTestConnectionService(store, provider)

	conn := seedConnection(t, store, "vendas", domain.StateAwaitingScan)

	got, err := svc.ConfirmLinked(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("probe failure must not surface: %v", err)
	}
	if got.State == domain.StateConnected {
		t.Error("failed probe must not confirm the link")
	}
}

func TestConnectionService_WatchConfirmsLink(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	provider.FetchProfileFn = func(name string) (*domain.Profile, error) {
		return &domain.Profile{DisplayName: "Vendas", Contact: "+5511999999999", AvatarURL: "https://cdn/p.jpg"}, nil
	}

	linked := make(chan *domain.Connection, 1)
	svc := NewConnectionService(ConnectionServiceConfig{
		Store:        store,
		Provider:     provider,
		QRTTL:        time.Minute,
		PollInterval: 5 * time.Millisecond,
		OnLinked:     func(conn *domain.Connection) { linked <- conn },
	})
	defer svc.Shutdown()

	conn, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	select {
	case got := <-linked:
		if got.State != domain.StateConnected {
			t.Errorf("expected connected, got %s", got.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never confirmed the link")
	}

	stored, err := store.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.State != domain.StateConnected {
		t.Errorf("expected persisted connected state, got %s", stored.State)
	}
}

func TestConnectionService_WatchProbesImmediately(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	provider.FetchProfileFn = func(name string) (*domain.Profile, error) {
		return &domain.Profile{DisplayName: "Vendas", Contact: "+5511999999999", AvatarURL: "https://cdn/p.jpg"}, nil
	}

	linked := make(chan *domain.Connection, 1)
	svc := NewConnectionService(ConnectionServiceConfig{
		Store:        store,
		Provider:     provider,
		QRTTL:        time.Minute,
		PollInterval: time.Hour, // Only the immediate probe can confirm
		OnLinked:     func(conn *domain.Connection) { linked <- conn },
	})
	defer svc.Shutdown()

	if _, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The first probe fires right after the QR is issued, not a poll
	// interval later
	select {
	case got := <-linked:
		if got.State != domain.StateConnected {
			t.Errorf("expected connected, got %s", got.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("immediate probe never ran")
	}
}

func TestConnectionService_ConfirmLinked_ExpiredWindow(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()

	svc := NewConnectionService(ConnectionServiceConfig{
		Store:        store,
		Provider:     provider,
		QRTTL:        20 * time.Millisecond,
		PollInterval: time.Hour,
	})
	defer svc.Shutdown()

	conn, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), conn.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.State == domain.StateExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("QR never expired, state is %s", got.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Even a provider that now reports a full profile cannot revive a
	// lapsed scan window
	provider.SetFetchProfileFn(func(name string) (*domain.Profile, error) {
		return &domain.Profile{DisplayName: "Vendas", Contact: "+5511999999999", AvatarURL: "https://cdn/p.jpg"}, nil
	})
	fetches := provider.ProfileCallCount()

	got, err := svc.ConfirmLinked(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if got.State != domain.StateExpired {
		t.Errorf("expected expired, got %s", got.State)
	}
	if provider.ProfileCallCount() != fetches {
		t.Error("an expired scan must not probe the provider")
	}

	stored, err := store.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.State == domain.StateConnected {
		t.Error("expired scan must not transition to connected")
	}
}

func TestConnectionService_WatchExpires(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()

	svc := NewConnectionService(ConnectionServiceConfig{
		Store:        store,
		Provider:     provider,
		QRTTL:        20 * time.Millisecond,
		PollInterval: time.Hour, // Only the expiry timer can end the watch
	})
	defer svc.Shutdown()

	conn, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), conn.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.State == domain.StateExpired {
			if got.QR != nil {
				t.Error("expired connections must not expose a QR")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("QR never expired, state is %s", got.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A fresh QR resets the scan window
	qr, err := svc.RequestQR(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("request qr failed: %v", err)
	}
	if qr == nil || qr.Image == "" {
		t.Fatal("expected a fresh QR")
	}

	got, err := svc.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.State != domain.StateAwaitingScan {
		t.Errorf("expected awaiting scan after new QR, got %s", got.State)
	}
}

func TestConnectionService_RequestQR_Connected(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	conn := seedConnection(t, store, "vendas", domain.StateConnected)

	_, err := svc.RequestQR(context.Background(), conn.ID)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for connected connection, got %v", err)
	}
	if provider.FetchQRCalls != 0 {
		t.Error("provider must not be called")
	}
}

func TestConnectionService_CancelScan(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)
	defer svc.Shutdown()

	conn, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.CancelScan(context.Background(), conn.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	got, err := svc.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.State != domain.StateDisconnected {
		t.Errorf("expected disconnected after cancel, got %s", got.State)
	}

	upd := store.LastUpdate()
	if upd == nil || !upd.Update.ClearQR {
		t.Error("cancel must clear the stored QR")
	}

	// Cancelling again is a no-op, not an error
	if err := svc.CancelScan(context.Background(), conn.ID); err != nil {
		t.Errorf("repeated cancel failed: %v", err)
	}
}

func TestConnectionService_Disconnect_LocallyAuthoritative(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	provider.DisconnectFn = func(name string) error {
		return &domain.RemoteError{Op: "disconnect", StatusCode: 500}
	}
	svc := newTestConnectionService(store, provider)

	conn := seedConnection(t, store, "vendas", domain.StateConnected)

	if err := svc.Disconnect(context.Background(), conn.ID); err != nil {
		t.Fatalf("disconnect must succeed despite the provider failure: %v", err)
	}

	upd := store.LastUpdate()
	if upd == nil {
		t.Fatal("expected a store write")
	}
	if upd.Update.Status == nil || *upd.Update.Status != domain.StoreStatusDisconnected {
		t.Error("expected status disconnected")
	}
	if !upd.Update.ClearProfile || !upd.Update.ClearConnectedAt || !upd.Update.ClearQR {
		t.Error("disconnect must clear profile, link timestamp and QR")
	}
	if provider.DisconnectCalls != 1 {
		t.Errorf("expected 1 provider disconnect attempt, got %d", provider.DisconnectCalls)
	}
}

func TestConnectionService_Delete_RemoteFailureIgnored(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	provider.RemoveFn = func(name string) error {
		return &domain.RemoteError{Op: "remove", StatusCode: 500}
	}
	svc := newTestConnectionService(store, provider)

	conn := seedConnection(t, store, "vendas", domain.StateConnected)

	if err := svc.Delete(context.Background(), conn.ID); err != nil {
		t.Fatalf("delete must succeed despite the provider failure: %v", err)
	}
	if store.Count() != 0 {
		t.Error("expected the record to be gone")
	}
	if provider.RemoveCalls != 1 {
		t.Errorf("expected 1 provider removal attempt, got %d", provider.RemoveCalls)
	}
}

func TestConnectionService_Delete_NotFound(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	err := svc.Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if provider.RemoveCalls != 0 {
		t.Error("provider must not be called for a missing connection")
	}
}

func TestConnectionService_List_OwnerScoped(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()
	svc := newTestConnectionService(store, provider)

	a := &domain.Connection{Name: "a", OwnerID: "owner-1", State: domain.StateConnected, CreatedAt: time.Now().Add(-time.Hour)}
	b := &domain.Connection{Name: "b", OwnerID: "owner-1", State: domain.StateDisconnected, CreatedAt: time.Now()}
	c := &domain.Connection{Name: "c", OwnerID: "owner-2", State: domain.StateConnected, CreatedAt: time.Now()}
	for _, conn := range []*domain.Connection{a, b, c} {
		if err := store.Create(context.Background(), conn); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	conns, err := svc.List(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections for owner-1, got %d", len(conns))
	}
	if conns[0].Name != "b" {
		t.Errorf("expected newest first, got %s", conns[0].Name)
	}

	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 connections in total, got %d", len(all))
	}
}

func TestConnectionService_WatchActivityEdges(t *testing.T) {
	store := mocks.NewMockConnectionStore()
	provider := mocks.NewMockLinkProvider()

	var mu sync.Mutex
	var edges []bool
	svc := NewConnectionService(ConnectionServiceConfig{
		Store:        store,
		Provider:     provider,
		QRTTL:        time.Minute,
		PollInterval: time.Hour,
		OnWatchActivity: func(active bool) {
			mu.Lock()
			edges = append(edges, active)
			mu.Unlock()
		},
	})
	defer svc.Shutdown()

	first, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "vendas"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(context.Background(), "owner-1", driving.CreateConnectionRequest{Name: "suporte"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Two scans, one edge: activity only reports the first start
	mu.Lock()
	got := append([]bool(nil), edges...)
	mu.Unlock()
	if len(got) != 1 || !got[0] {
		t.Fatalf("expected a single active edge, got %v", got)
	}

	if err := svc.CancelScan(context.Background(), first.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := svc.CancelScan(context.Background(), second.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	mu.Lock()
	got = append([]bool(nil), edges...)
	mu.Unlock()
	if len(got) != 2 || got[1] {
		t.Fatalf("expected an inactive edge after the last cancel, got %v", got)
	}
}
