package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"
)

// opsQueue runs closures one at a time on a single goroutine. enqueue
// never blocks and rejects ops while the queue is full; enqueueWait blocks
// until there is room.
type opsQueue struct {
	log  zerolog.Logger
	size int

	lock      sync.RWMutex
	ops       chan func()
	isStopped bool
	done      chan struct{}
}

func newOpsQueue(logger zerolog.Logger, size int) *opsQueue {
	if size <= 0 {
		size = 256
	}
	return &opsQueue{
		log:  logger,
		size: size,
		ops:  make(chan func(), size),
		done: make(chan struct{}),
	}
}

func (oq *opsQueue) start() {
	go oq.process()
}

// stop closes the queue and waits for queued ops to finish.
func (oq *opsQueue) stop() {
	oq.lock.Lock()
	if oq.isStopped {
		oq.lock.Unlock()
		<-oq.done
		return
	}
	oq.isStopped = true
	close(oq.ops)
	oq.lock.Unlock()
	<-oq.done
}

func (oq *opsQueue) enqueue(op func()) error {
	oq.lock.RLock()
	defer oq.lock.RUnlock()
	if oq.isStopped {
		return ErrClosed
	}

	select {
	case oq.ops <- op:
		return nil
	default:
		oq.log.Error().Int("size", oq.size).Msg("ops queue full")
		return ErrQueueFull
	}
}

// enqueueWait must not be called from the queue goroutine.
func (oq *opsQueue) enqueueWait(op func()) error {
	oq.lock.RLock()
	defer oq.lock.RUnlock()
	if oq.isStopped {
		return ErrClosed
	}
	oq.ops <- op
	return nil
}

func (oq *opsQueue) process() {
	defer close(oq.done)
	for op := range oq.ops {
		op()
	}
}
