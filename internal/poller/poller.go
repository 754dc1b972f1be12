package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
)

const (
	DefaultTopK       = 5
	DefaultInterval   = 10 * time.Second
	DefaultRetryDelay = 10 * time.Second
)

var (
	ErrMissingSource = errors.New("poller: document store is required")
	ErrMissingIndex  = errors.New("poller: index name is required")
)

// Source is the read side of the document store the poller needs
type Source interface {
	Info(ctx context.Context) (store.ClusterInfo, error)
	Count(ctx context.Context, index string) (int, error)
	Recent(ctx context.Context, index string, k int) ([]schema.Hit, error)
}

// Config controls one poller. Zero durations and TopK fall back to the
// defaults.
type Config struct {
	Index      string
	TopK       int
	Interval   time.Duration
	RetryDelay time.Duration
}

// Snapshot is the result of one poll
type Snapshot struct {
	Total  int
	Recent []schema.Hit
	At     time.Time
}

// Poller watches an index for new records. It compares raw counts only, so
// a delete followed by an insert between two polls goes unnoticed.
type Poller struct {
	src     Source
	cfg     Config
	notify  Notifier
	metrics *Metrics
	now     func() time.Time
}

// Option customizes a Poller
type Option func(*Poller)

// WithNotifier sets where poll events are delivered
func WithNotifier(n Notifier) Option {
	return func(p *Poller) { p.notify = n }
}

// WithMetrics records poll outcomes in m
func WithMetrics(m *Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func New(src Source, cfg Config, opts ...Option) (*Poller, error) {
	if src == nil {
		return nil, ErrMissingSource
	}
	if strings.TrimSpace(cfg.Index) == "" {
		return nil, ErrMissingIndex
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	p := &Poller{
		src:    src,
		cfg:    cfg,
		notify: NotifierFunc(func(Event) {}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the effective configuration after defaults
func (p *Poller) Config() Config { return p.cfg }

// Check performs the first-use identity call against the store
func (p *Poller) Check(ctx context.Context) (store.ClusterInfo, error) {
	info, err := p.src.Info(ctx)
	if err != nil {
		return info, fmt.Errorf("cannot reach document store: %w", err)
	}
	return info, nil
}

// PollOnce reads the total record count and the TopK most recent records.
// It never writes to the store.
func (p *Poller) PollOnce(ctx context.Context) (Snapshot, error) {
	start := p.now()

	total, err := p.src.Count(ctx, p.cfg.Index)
	if err != nil {
		p.metrics.observe(start, p.now(), err)
		return Snapshot{}, err
	}
	recent, err := p.src.Recent(ctx, p.cfg.Index, p.cfg.TopK)
	if err != nil {
		p.metrics.observe(start, p.now(), err)
		return Snapshot{}, err
	}

	p.metrics.observe(start, p.now(), nil)
	p.metrics.setTotal(total)
	return Snapshot{Total: total, Recent: recent, At: start}, nil
}

// Run polls until ctx is cancelled. Failed polls are reported and retried
// after RetryDelay; they never end the loop. Run returns nil once ctx is
// done.
func (p *Poller) Run(ctx context.Context) error {
	log.Debugf("polling index %s every %s (top %d)", p.cfg.Index, p.cfg.Interval, p.cfg.TopK)

	var (
		last     int
		baseline bool
		state    = StatePolling
	)
	p.metrics.setState(state)

	for {
		snap, err := p.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			state = StateErrorBackoff
			p.metrics.setState(state)
			log.Debugf("poll failed, retrying in %s: %v", p.cfg.RetryDelay, err)
			p.notify.Notify(Event{
				Kind:    EventError,
				State:   state,
				Err:     err,
				RetryIn: p.cfg.RetryDelay,
			})
			if !sleep(ctx, p.cfg.RetryDelay) {
				return nil
			}
			state = StatePolling
			p.metrics.setState(state)
			continue
		}

		ev := Event{State: state, Snapshot: snap, Previous: last}
		switch {
		case !baseline:
			ev.Kind = EventBaseline
			baseline = true
		case snap.Total > last:
			ev.Kind = EventChange
			ev.Delta = snap.Total - last
			p.metrics.addNew(ev.Delta)
		default:
			ev.Kind = EventNoChange
			ev.Delta = snap.Total - last
		}
		last = snap.Total
		p.notify.Notify(ev)

		if !sleep(ctx, p.cfg.Interval) {
			return nil
		}
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
