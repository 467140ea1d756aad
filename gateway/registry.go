package gateway

import (
	"context"
	"sync"
	"time"

	tomin "github.com/tomin-app/tomin-web"
	"github.com/tomin-app/tomin-web/client"
	"github.com/tomin-app/tomin-web/dashboard"
	"github.com/tomin-app/tomin-web/feed"
)

// Registry owns one dashboard and one live subscription per authenticated
// subject. Entries are created on first protected access and released on
// logout or idle eviction, which keeps the one-subscription-per-subject
// invariant across navigations.
type Registry struct {
	backend dashboard.Fetcher
	feeds   *feed.Manager
	logger  tomin.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	dash     *dashboard.Dashboard
	lastSeen time.Time
}

func NewRegistry(backend dashboard.Fetcher, feeds *feed.Manager, logger tomin.Logger) *Registry {
	if logger == nil {
		logger = tomin.DefaultLogger()
	}
	return &Registry{
		backend: backend,
		feeds:   feeds,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
}

// Acquire returns the subject's dashboard, creating it (and opening its
// live subscription) on first access. The initial fetch batch runs in the
// background so the first response can render a loading state; period only
// applies to that first batch, existing sessions keep their selection.
func (r *Registry) Acquire(subject, credential string, period client.Period) (*dashboard.Dashboard, error) {
	if period == "" {
		period = client.DefaultPeriod
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[subject]; ok {
		entry.dash.UpdateCredential(credential)
		entry.lastSeen = r.now()
		return entry.dash, nil
	}

	dash := dashboard.New(r.backend, credential,
		dashboard.WithLogger(r.logger),
		dashboard.WithPeriod(period),
	)

	_, err := r.feeds.Subscribe(
		context.Background(),
		subject,
		dash.HandleFeedEvent,
		feed.WithOnDown(func(error) { dash.MarkFeedDown() }),
	)
	if err != nil {
		return nil, err
	}

	r.entries[subject] = &registryEntry{
		dash:     dash,
		lastSeen: r.now(),
	}

	go dash.Refresh(context.Background(), period)
	return dash, nil
}

// Release closes the subject's subscription and forgets its dashboard.
func (r *Registry) Release(subject string) {
	r.mu.Lock()
	_, ok := r.entries[subject]
	if ok {
		delete(r.entries, subject)
	}
	r.mu.Unlock()

	if ok {
		r.feeds.Unsubscribe(subject)
		r.logger.Debug("Released dashboard session for %s", subject)
	}
}

// EvictIdle releases every entry untouched for longer than ttl and reports
// how many were evicted.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var idle []string
	for subject, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			idle = append(idle, subject)
		}
	}
	for _, subject := range idle {
		delete(r.entries, subject)
	}
	r.mu.Unlock()

	for _, subject := range idle {
		r.feeds.Unsubscribe(subject)
		r.logger.Info("Evicted idle dashboard session for %s", subject)
	}
	return len(idle)
}

// Len reports how many subjects currently hold a session.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close releases every entry.
func (r *Registry) Close() {
	r.mu.Lock()
	subjects := make([]string, 0, len(r.entries))
	for subject := range r.entries {
		subjects = append(subjects, subject)
	}
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, subject := range subjects {
		r.feeds.Unsubscribe(subject)
	}
}
