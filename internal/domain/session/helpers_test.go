package session

import (
	"sync"
	"testing"
	"time"

	"medboard-server-go/internal/domain/eventbus"
	"medboard-server-go/internal/domain/session/store"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Debug(format string, args ...any) { l.t.Logf("DEBUG "+format, args...) }
func (l *testLogger) Info(format string, args ...any)  { l.t.Logf("INFO  "+format, args...) }
func (l *testLogger) Warn(format string, args ...any)  { l.t.Logf("WARN  "+format, args...) }
func (l *testLogger) Error(format string, args ...any) { l.t.Logf("ERROR "+format, args...) }

// destroyedCollector records destroy broadcasts for assertions.
type destroyedCollector struct {
	mutex  sync.Mutex
	events []eventbus.SessionDestroyedData
}

func (c *destroyedCollector) handle(data eventbus.SessionDestroyedData) {
	c.mutex.Lock()
	c.events = append(c.events, data)
	c.mutex.Unlock()
}

func (c *destroyedCollector) snapshot() []eventbus.SessionDestroyedData {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]eventbus.SessionDestroyedData, len(c.events))
	copy(out, c.events)
	return out
}

func newTestManager(t *testing.T, maxConcurrent int) (*Manager, *destroyedCollector) {
	t.Helper()

	bus := eventbus.New(2)
	t.Cleanup(bus.Close)

	collector := &destroyedCollector{}
	if err := bus.Subscribe(eventbus.EventSessionDestroyed, collector.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	mgr, err := NewManager(Options{
		Store:          store.NewMemory(store.Config{}),
		Logger:         &testLogger{t},
		Bus:            bus,
		TimeoutMinutes: 30,
		MaxConcurrent:  maxConcurrent,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() {
		_ = mgr.Close()
	})
	return mgr, collector
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(NewMemoryStorage(), "test-secret", 30*time.Minute, &testLogger{t})
}
