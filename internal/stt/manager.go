package stt

import (
	"context"
	"fmt"
	"sync"

	"github.com/roelfdiedericks/minutes/internal/bus"
	. "github.com/roelfdiedericks/minutes/internal/logging"
)

// Manager owns the active provider and swaps it when config changes.
// It implements Provider by delegating to whatever is active.
type Manager struct {
	mu       sync.RWMutex
	active   *lease
	applyErr error
}

// lease counts the calls still running on a provider, so a replaced
// provider is only closed once they finish.
type lease struct {
	provider Provider
	inflight sync.WaitGroup
}

// NewManager creates a manager with no provider.
func NewManager() *Manager {
	return &Manager{}
}

// ApplyConfig builds the provider for cfg and replaces the active one.
// On failure the previous provider is closed anyway and the error is kept,
// so later Transcribe calls report why nothing is configured.
// The previous provider is closed after its in-flight calls return.
func (m *Manager) ApplyConfig(cfg Config) error {
	provider, err := New(cfg)
	m.swap(provider, err)

	if err != nil {
		L_error("stt: provider setup failed", "provider", cfg.Provider, "error", err)
		return err
	}
	if provider != nil {
		L_info("stt: provider active", "provider", provider.Name())
	}
	bus.PublishEvent(bus.TopicSTTApplied, m.Name())
	return nil
}

// swap installs provider and retires the previous one.
func (m *Manager) swap(provider Provider, applyErr error) {
	var next *lease
	if provider != nil {
		next = &lease{provider: provider}
	}

	m.mu.Lock()
	old := m.active
	m.active = next
	m.applyErr = applyErr
	m.mu.Unlock()

	retire(old)
}

// retire waits for calls still using l and then closes its provider.
func retire(l *lease) {
	if l == nil {
		return
	}
	l.inflight.Wait()
	if err := l.provider.Close(); err != nil {
		L_warn("stt: failed to close previous provider", "provider", l.provider.Name(), "error", err)
	}
}

// Active returns the current provider, or nil.
func (m *Manager) Active() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil
	}
	return m.active.provider
}

// Transcribe delegates to the active provider.
func (m *Manager) Transcribe(ctx context.Context, req Request) (string, error) {
	m.mu.RLock()
	l, applyErr := m.active, m.applyErr
	if l != nil {
		l.inflight.Add(1)
	}
	m.mu.RUnlock()

	if l == nil {
		if applyErr != nil {
			return "", fmt.Errorf("%w: %v", ErrNoProvider, applyErr)
		}
		return "", ErrNoProvider
	}
	defer l.inflight.Done()
	return l.provider.Transcribe(ctx, req)
}

// Name returns the active provider name, or "none".
func (m *Manager) Name() string {
	if p := m.Active(); p != nil {
		return p.Name()
	}
	return "none"
}

// Close shuts down the active provider once its running calls return.
func (m *Manager) Close() error {
	m.mu.Lock()
	l := m.active
	m.active = nil
	m.mu.Unlock()

	if l == nil {
		return nil
	}
	l.inflight.Wait()
	return l.provider.Close()
}
