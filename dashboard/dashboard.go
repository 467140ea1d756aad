// Package dashboard owns the refresh cycle for the protected view state:
// the batched, concurrent fetch of spending distribution, transactions,
// recurring detections and the financial summary, plus the stale-data
// notice fed by the live channel. Batches are applied atomically; a
// generation token guarantees an older in-flight batch can never overwrite
// a newer one.
package dashboard

import (
	"context"
	"math"
	"sync"

	"github.com/shopspring/decimal"
	tomin "github.com/tomin-app/tomin-web"
	"github.com/tomin-app/tomin-web/client"
	"github.com/tomin-app/tomin-web/feed"
)

// Fetcher is the slice of the backend client the refresh cycle needs.
type Fetcher interface {
	SpendingDistribution(ctx context.Context, credential string, period client.Period) ([]client.SpendingSlice, error)
	Transactions(ctx context.Context, credential string, period client.Period) ([]client.Transaction, error)
	RecurringTransactions(ctx context.Context, credential string, period client.Period) ([]client.Transaction, error)
	Summary(ctx context.Context, credential string) (*client.Summary, error)
}

// SpendingSlice is the normalized render shape for one distribution entry.
type SpendingSlice struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Color      string          `json:"color"`
	Percentage int             `json:"percentage"`
}

// Notice is the stale-data flag: backend state moved on while the rendered
// data did not. Cleared by dismissal or by refreshing.
type Notice struct {
	Visible bool   `json:"visible"`
	Message string `json:"message"`
}

// ViewState is everything the protected view renders.
type ViewState struct {
	Loading      bool                 `json:"loading"`
	Period       client.Period        `json:"period"`
	Spending     []SpendingSlice      `json:"spending"`
	Transactions []client.Transaction `json:"transactions"`
	Recurring    []client.Transaction `json:"recurring"`
	Summary      *client.Summary      `json:"summary"`
	Notice       Notice               `json:"notice"`
	FeedDown     bool                 `json:"feed_down"`
}

// Dashboard drives the refresh cycle for one subject.
type Dashboard struct {
	fetcher Fetcher
	logger  tomin.Logger

	mu         sync.Mutex
	credential string
	state      ViewState
	generation uint64
}

type Option func(*Dashboard)

func WithLogger(logger tomin.Logger) Option {
	return func(d *Dashboard) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPeriod sets the initial period selector.
func WithPeriod(period client.Period) Option {
	return func(d *Dashboard) {
		if period != "" {
			d.state.Period = period
		}
	}
}

func New(fetcher Fetcher, credential string, opts ...Option) *Dashboard {
	d := &Dashboard{
		fetcher:    fetcher,
		logger:     tomin.DefaultLogger(),
		credential: credential,
		state: ViewState{
			Loading: true,
			Period:  client.DefaultPeriod,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// UpdateCredential swaps in the credential from the latest request.
func (d *Dashboard) UpdateCredential(credential string) {
	d.mu.Lock()
	d.credential = credential
	d.mu.Unlock()
}

// Refresh runs the fetch batch for the period and applies the results
// atomically. The loading flag resolves exactly once per applied
// invocation regardless of how many member fetches fail; failed members
// keep their previous value. A superseded invocation is discarded whole.
func (d *Dashboard) Refresh(ctx context.Context, period client.Period) {
	if period == "" {
		period = client.DefaultPeriod
	}

	d.mu.Lock()
	d.generation++
	generation := d.generation
	credential := d.credential
	d.state.Loading = true
	d.state.Period = period
	d.mu.Unlock()

	var (
		spending    []client.SpendingSlice
		spendingErr error
		txs         []client.Transaction
		txErr       error
		recurring   []client.Transaction
		recErr      error
		summary     *client.Summary
		summaryErr  error
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		spending, spendingErr = d.fetcher.SpendingDistribution(ctx, credential, period)
	}()
	go func() {
		defer wg.Done()
		txs, txErr = d.fetcher.Transactions(ctx, credential, period)
	}()
	go func() {
		defer wg.Done()
		recurring, recErr = d.fetcher.RecurringTransactions(ctx, credential, period)
	}()
	go func() {
		defer wg.Done()
		summary, summaryErr = d.fetcher.Summary(ctx, credential)
	}()
	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	if generation != d.generation {
		d.logger.Debug("Discarding superseded refresh (generation %d, latest %d)", generation, d.generation)
		return
	}

	if spendingErr != nil {
		d.logger.Error("Refresh kept previous spending distribution: %s", spendingErr)
	} else {
		d.state.Spending = normalizeSpending(spending)
	}
	if txErr != nil {
		d.logger.Error("Refresh kept previous transactions: %s", txErr)
	} else {
		d.state.Transactions = txs
	}
	if recErr != nil {
		d.logger.Error("Refresh kept previous recurring transactions: %s", recErr)
	} else {
		d.state.Recurring = recurring
	}
	if summaryErr != nil {
		d.logger.Error("Refresh kept previous summary: %s", summaryErr)
	} else {
		d.state.Summary = summary
	}

	d.state.Loading = false
}

// SetPeriod refreshes with the new selector when it differs from the
// current one.
func (d *Dashboard) SetPeriod(ctx context.Context, period client.Period) {
	d.mu.Lock()
	current := d.state.Period
	d.mu.Unlock()

	if period == "" || period == current {
		return
	}
	d.Refresh(ctx, period)
}

// HandleFeedEvent raises the stale-data notice on upload completion. Other
// event types never reach the dashboard; the feed discards them.
func (d *Dashboard) HandleFeedEvent(event feed.Event) {
	if event.Type != feed.EventUploadComplete {
		return
	}
	d.mu.Lock()
	d.state.Notice = Notice{Visible: true, Message: event.Message}
	d.mu.Unlock()
}

// DismissNotice clears the stale-data notice without refetching.
func (d *Dashboard) DismissNotice() {
	d.mu.Lock()
	d.state.Notice = Notice{}
	d.mu.Unlock()
}

// RefreshFromNotice is the notice's refresh action: re-run the batch for
// the current period and clear the flag.
func (d *Dashboard) RefreshFromNotice(ctx context.Context) {
	d.mu.Lock()
	period := d.state.Period
	d.state.Notice = Notice{}
	d.mu.Unlock()

	d.Refresh(ctx, period)
}

// MarkFeedDown records the terminal feed-unavailable state for the view.
func (d *Dashboard) MarkFeedDown() {
	d.mu.Lock()
	d.state.FeedDown = true
	d.mu.Unlock()
}

// Snapshot returns a consistent copy of the view state.
func (d *Dashboard) Snapshot() ViewState {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.state
	state.Spending = append([]SpendingSlice(nil), d.state.Spending...)
	state.Transactions = append([]client.Transaction(nil), d.state.Transactions...)
	state.Recurring = append([]client.Transaction(nil), d.state.Recurring...)
	if d.state.Summary != nil {
		summary := *d.state.Summary
		state.Summary = &summary
	}
	return state
}

func normalizeSpending(raw []client.SpendingSlice) []SpendingSlice {
	slices := make([]SpendingSlice, 0, len(raw))
	for _, s := range raw {
		slices = append(slices, SpendingSlice{
			Category:   s.Category,
			Amount:     s.Amount,
			Color:      s.Color,
			Percentage: int(math.Round(s.Percentage)),
		})
	}
	return slices
}
