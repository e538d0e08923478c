// Package ledger accumulates token counts and derived cost across every
// provider call a run makes, broken down by provider and by feature, with
// synchronous change notification for progress displays.
package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Usage is the token accounting a provider reports for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Record is one immutable per-call entry.
type Record struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Feature  string    `json:"feature"` // e.g. "translate", "blog", "image_triage"
	Usage    Usage     `json:"usage"`
	CostUSD  float64   `json:"cost_usd"`
	At       time.Time `json:"at"`
}

// Totals is a running aggregate.
type Totals struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Calls        int64   `json:"calls"`
}

func (t *Totals) add(u Usage, cost float64) {
	t.InputTokens += int64(u.PromptTokens)
	t.OutputTokens += int64(u.CompletionTokens)
	t.CostUSD += cost
	t.Calls++
}

// Snapshot is a point-in-time copy of all aggregates, safe to retain.
type Snapshot struct {
	Grand      Totals            `json:"grand"`
	ByProvider map[string]Totals `json:"by_provider"`
	ByFeature  map[string]Totals `json:"by_feature"`
}

// Observer receives a snapshot after every recorded call.
type Observer func(Snapshot)

// Ledger is the process-wide accumulator. It is owned by the job coordinator
// and injected into every call site rather than accessed as a global.
type Ledger struct {
	mu         sync.Mutex
	grand      Totals
	byProvider map[string]Totals
	byFeature  map[string]Totals
	records    []Record
	observers  []Observer
	logger     *slog.Logger
}

// New creates an empty ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		byProvider: make(map[string]Totals),
		byFeature:  make(map[string]Totals),
		logger:     logger,
	}
}

// OnChange registers an observer invoked synchronously after each update.
func (l *Ledger) OnChange(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Record accounts one provider call and returns its computed cost. The
// record is never dropped: cost lookup always succeeds via the default rate.
func (l *Ledger) Record(provider, model, feature string, usage Usage) float64 {
	cost := CalculateCost(model, usage)

	l.mu.Lock()
	l.grand.add(usage, cost)

	pt := l.byProvider[provider]
	pt.add(usage, cost)
	l.byProvider[provider] = pt

	ft := l.byFeature[feature]
	ft.add(usage, cost)
	l.byFeature[feature] = ft

	l.records = append(l.records, Record{
		Provider: provider,
		Model:    model,
		Feature:  feature,
		Usage:    usage,
		CostUSD:  cost,
		At:       time.Now(),
	})

	snap := l.snapshotLocked()
	observers := make([]Observer, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, fn := range observers {
		l.notify(fn, snap)
	}
	return cost
}

// notify calls one observer, isolating panics so a misbehaving callback
// cannot corrupt ledger state or starve the others.
func (l *Ledger) notify(fn Observer, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("ledger observer panicked", "panic", r)
		}
	}()
	fn(snap)
}

// Snapshot returns a copy of the current aggregates.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	snap := Snapshot{
		Grand:      l.grand,
		ByProvider: make(map[string]Totals, len(l.byProvider)),
		ByFeature:  make(map[string]Totals, len(l.byFeature)),
	}
	for k, v := range l.byProvider {
		snap.ByProvider[k] = v
	}
	for k, v := range l.byFeature {
		snap.ByFeature[k] = v
	}
	return snap
}

// Records returns a copy of all per-call records in order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Providers returns the provider names seen so far, sorted.
func (l *Ledger) Providers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.byProvider))
	for name := range l.byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all aggregates and records. Observers stay registered.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grand = Totals{}
	l.byProvider = make(map[string]Totals)
	l.byFeature = make(map[string]Totals)
	l.records = nil
}
