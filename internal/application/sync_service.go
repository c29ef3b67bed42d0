package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when a sync is triggered again within the cooldown.
var ErrRateLimited = errors.New("rate limit exceeded")

// syncCooldown is the minimum time between API triggered syncs.
const syncCooldown = 30 * time.Second

// SyncResult reports the outcome of one layer sync.
type SyncResult struct {
	LayersAdded     int       `json:"layers_added"`
	LayersRemoved   int       `json:"layers_removed"`
	LayersTotal     int       `json:"layers_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService keeps the layer library in sync with layer storage, on a fixed
// interval and on demand.
type SyncService struct {
	library  *LayerLibrary
	interval time.Duration
	logger   *slog.Logger

	syncing sync.Mutex // held for the duration of one sync

	mu          sync.Mutex
	lastTrigger time.Time
	next        time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSyncService creates a sync service. Start must be called for periodic syncs.
func NewSyncService(library *LayerLibrary, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		library:  library,
		interval: interval,
		logger:   logger.With("component", "sync"),
	}
}

// Start runs periodic syncs until ctx is done or Stop is called.
// It does nothing when the interval is not positive or the service already runs.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.next = time.Now().Add(s.interval)

	s.logger.Info("starting sync service", "interval", s.interval)
	go s.run(ctx, s.done)
}

func (s *SyncService) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.next = time.Now().Add(s.interval)
			s.mu.Unlock()

			if _, err := s.sync(ctx, "schedule"); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// Stop ends periodic syncs and waits for a running one to finish.
func (s *SyncService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sync service stopped")
}

// TriggerSync syncs immediately. It returns ErrRateLimited when the previous
// trigger was less than syncCooldown ago.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastTrigger.IsZero() && time.Since(s.lastTrigger) < syncCooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTrigger = time.Now()
	s.mu.Unlock()

	return s.sync(ctx, "api")
}

// sync runs one library sync. Concurrent callers wait for each other.
func (s *SyncService) sync(ctx context.Context, trigger string) (SyncResult, error) {
	s.syncing.Lock()
	defer s.syncing.Unlock()

	stats, err := s.library.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		LayersAdded:   stats.Added,
		LayersRemoved: stats.Removed,
		LayersTotal:   s.library.LayerCount(),
		SyncedAt:      time.Now(),
	}
	s.mu.Lock()
	if s.done != nil {
		result.NextScheduledAt = s.next
	}
	s.mu.Unlock()

	if stats.Added > 0 || stats.Removed > 0 {
		s.logger.Info("layers synced",
			"trigger", trigger,
			"added", stats.Added,
			"removed", stats.Removed,
			"total", result.LayersTotal,
		)
	}
	return result, nil
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
