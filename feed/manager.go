package feed

import (
	"context"
	"sync"

	tomin "github.com/tomin-app/tomin-web"
)

// Manager enforces the one-subscription-per-subject invariant: opening a
// replacement always closes the previous channel first and waits for it to
// reach a closed state.
type Manager struct {
	transport Transport
	opts      []Option
	logger    tomin.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

func NewManager(transport Transport, opts ...Option) *Manager {
	return &Manager{
		transport: transport,
		opts:      opts,
		logger:    tomin.DefaultLogger(),
		subs:      make(map[string]*Subscription),
	}
}

// SetLogger replaces the manager's own logger (subscription loggers come
// from the options).
func (m *Manager) SetLogger(logger tomin.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Subscribe opens the live channel for the subject, replacing any prior
// one. Extra options are appended to the manager-wide ones.
func (m *Manager) Subscribe(ctx context.Context, subject string, handler Handler, opts ...Option) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.subs[subject]; ok {
		m.logger.Debug("Replacing live subscription for %s", subject)
		prev.Close()
		delete(m.subs, subject)
	}

	sub, err := Subscribe(ctx, m.transport, subject, handler, append(m.opts, opts...)...)
	if err != nil {
		return nil, err
	}

	m.subs[subject] = sub
	return sub, nil
}

// Unsubscribe closes the subject's channel if one is open.
func (m *Manager) Unsubscribe(subject string) {
	m.mu.Lock()
	sub, ok := m.subs[subject]
	if ok {
		delete(m.subs, subject)
	}
	m.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Active reports whether the subject currently has a subscription.
func (m *Manager) Active(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[subject]
	return ok
}

// Close shuts every subscription down.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for subject, sub := range m.subs {
		subs = append(subs, sub)
		delete(m.subs, subject)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
