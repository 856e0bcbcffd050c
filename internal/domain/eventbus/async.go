package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

type asyncEvent struct {
	topic string
	args  []interface{}
}

// AsyncBus fans queued events out to a fixed worker pool so slow
// subscribers cannot block publishers.
type AsyncBus struct {
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	target    evbus.Bus
	targetMu  sync.Mutex
}

func newAsyncBus(workerNum int) *AsyncBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	return &AsyncBus{
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (ab *AsyncBus) start() {
	for i := 0; i < ab.workerNum; i++ {
		ab.wg.Add(1)
		go ab.worker()
	}
}

func (ab *AsyncBus) stop() {
	ab.stopOnce.Do(func() {
		close(ab.stopChan)
	})
	ab.wg.Wait()
}

func (ab *AsyncBus) worker() {
	defer ab.wg.Done()

	for {
		select {
		case <-ab.stopChan:
			return
		case event := <-ab.workChan:
			func() {
				defer func() {
					// a panicking subscriber must not take the worker down
					_ = recover()
				}()
				ab.targetMu.Lock()
				target := ab.target
				ab.targetMu.Unlock()
				if target != nil {
					target.Publish(event.topic, event.args...)
				}
			}()
		}
	}
}

func (ab *AsyncBus) publish(target evbus.Bus, topic string, args ...interface{}) {
	ab.targetMu.Lock()
	ab.target = target
	ab.targetMu.Unlock()

	select {
	case ab.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		// queue full, drop rather than block the publisher
	}
}
