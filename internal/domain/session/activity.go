package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TrackerOptions configures an activity Tracker.
type TrackerOptions struct {
	Manager *Manager
	Cache   *Cache
	Logger  Logger
	// MinInterval throttles server pings; signals arriving faster than
	// this collapse into the previous ping.
	MinInterval time.Duration
	// Source optionally feeds activity signals from a channel (the
	// dashboard's input-event listeners). Signal may also be called
	// directly.
	Source <-chan struct{}
}

// Tracker keeps a live session alive exactly while the user is
// interacting. Each signal pushes the activity window server-side, then
// overwrites the local cache with the server-confirmed record; the server
// owns the expiry math.
type Tracker struct {
	manager     *Manager
	cache       *Cache
	logger      Logger
	minInterval time.Duration
	source      <-chan struct{}

	group    singleflight.Group
	mutex    sync.Mutex
	tracking bool
	stop     chan struct{}
	lastPing time.Time
	wg       sync.WaitGroup
}

// NewTracker builds a Tracker. Start is separate so route mounting and
// unmounting can toggle tracking without rebuilding dependencies.
func NewTracker(opts TrackerOptions) *Tracker {
	minInterval := opts.MinInterval
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	return &Tracker{
		manager:     opts.Manager,
		cache:       opts.Cache,
		logger:      opts.Logger,
		minInterval: minInterval,
		source:      opts.Source,
	}
}

// StartTracking begins consuming activity signals. Calling it while
// already tracking is a no-op.
func (t *Tracker) StartTracking() {
	t.mutex.Lock()
	if t.tracking {
		t.mutex.Unlock()
		return
	}
	t.tracking = true
	t.stop = make(chan struct{})
	stop := t.stop
	t.mutex.Unlock()

	if t.source != nil {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			for {
				select {
				case <-stop:
					return
				case _, ok := <-t.source:
					if !ok {
						return
					}
					t.Signal(context.Background())
				}
			}
		}()
	}
}

// StopTracking detaches from the signal source. Idempotent; pending pings
// are allowed to finish.
func (t *Tracker) StopTracking() {
	t.mutex.Lock()
	if !t.tracking {
		t.mutex.Unlock()
		return
	}
	t.tracking = false
	close(t.stop)
	t.mutex.Unlock()

	t.wg.Wait()
}

// Signal records one unit of user activity. Throttled signals bump the
// local cache only; at most one server ping per minInterval goes out, and
// concurrent signals for the same session share a single round trip.
func (t *Tracker) Signal(ctx context.Context) {
	t.mutex.Lock()
	if !t.tracking {
		t.mutex.Unlock()
		return
	}
	now := time.Now()
	throttled := now.Sub(t.lastPing) < t.minInterval
	if !throttled {
		t.lastPing = now
	}
	t.mutex.Unlock()

	stored := t.cache.Get()
	if stored == nil {
		return
	}
	if throttled {
		t.cache.UpdateActivity()
		return
	}

	sessionID := stored.SessionID
	_, _, _ = t.group.Do(sessionID, func() (interface{}, error) {
		t.ping(ctx, sessionID)
		return nil, nil
	})
}

func (t *Tracker) ping(ctx context.Context, sessionID string) {
	if err := t.manager.UpdateActivity(ctx, sessionID, time.Now()); err != nil {
		// transient failure: keep the UI alive on a local bump
		t.logger.Warn("activity ping failed for %s: %v", sessionID, err)
		t.cache.UpdateActivity()
		return
	}

	rec, err := t.manager.GetSession(ctx, sessionID)
	if err != nil {
		t.logger.Warn("activity readback failed for %s: %v", sessionID, err)
		t.cache.UpdateActivity()
		return
	}
	t.cache.Store(rec)
}

// Tracking reports whether the tracker is currently attached.
func (t *Tracker) Tracking() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.tracking
}
