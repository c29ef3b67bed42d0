package location

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// ProviderName is reported with every replayed fix.
const ProviderName = "replay"

// ErrRunning is returned by Start while a replay is already running.
var ErrRunning = errors.New("replay already running")

var _ output.LocationProvider = (*Replay)(nil)

// Poster hands a function to the main thread.
type Poster interface {
	Post(fn func()) bool
}

// ReplayConfig holds replay settings.
type ReplayConfig struct {
	Interval time.Duration // Time between fixes
	Loop     bool          // Start over after the last point
}

// Replay delivers the points of a recorded track as location fixes.
type Replay struct {
	points []domain.GeoPoint
	poster Poster
	cfg    ReplayConfig
	logger *slog.Logger
	now    func() time.Time

	// gen changes on every Start and Stop; fixes from an older run are dropped.
	gen    atomic.Uint64
	mu     sync.Mutex
	stopCh chan struct{}
}

// NewReplay creates a replay provider that posts fixes through poster.
func NewReplay(points []domain.GeoPoint, poster Poster, cfg ReplayConfig, logger *slog.Logger) *Replay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Replay{
		points: points,
		poster: poster,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Name implements output.LocationProvider.
func (r *Replay) Name() string {
	return ProviderName
}

// Start implements output.LocationProvider. The first fix is posted at once.
func (r *Replay) Start(onFix func(domain.LocationFix)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopCh != nil {
		return ErrRunning
	}
	if len(r.points) == 0 {
		return domain.ErrUnavailable
	}

	gen := r.gen.Add(1)
	r.stopCh = make(chan struct{})
	go r.run(gen, r.stopCh, onFix)

	r.logger.Debug("replay started", "points", len(r.points), "interval", r.cfg.Interval)
	return nil
}

// Stop implements output.LocationProvider. Fixes already queued on the main
// thread are discarded.
func (r *Replay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopCh == nil {
		return
	}
	r.gen.Add(1)
	close(r.stopCh)
	r.stopCh = nil
	r.logger.Debug("replay stopped")
}

func (r *Replay) run(gen uint64, stopCh <-chan struct{}, onFix func(domain.LocationFix)) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	i := 0
	for {
		p := r.points[i]
		fix := domain.LocationFix{Point: p, Provider: ProviderName, Time: r.now()}
		posted := r.poster.Post(func() {
			if r.gen.Load() == gen {
				onFix(fix)
			}
		})
		if !posted {
			return
		}

		i++
		if i == len(r.points) {
			if !r.cfg.Loop {
				return
			}
			i = 0
		}

		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}
	}
}
