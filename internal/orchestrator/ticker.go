package orchestrator

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/junsooki/streamlink/internal/signaling"
)

// ticker enqueues op every interval until stopped.
type ticker struct {
	t    *clock.Ticker
	done chan struct{}
}

func (o *Orchestrator) newTicker(interval time.Duration, op func()) *ticker {
	t := &ticker{
		t:    o.clock.Ticker(interval),
		done: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.t.C:
				o.enqueue(op)
			case <-t.done:
				return
			}
		}
	}()
	return t
}

func (t *ticker) stop() {
	if t == nil {
		return
	}
	t.t.Stop()
	close(t.done)
}

func (o *Orchestrator) startKeepalive() {
	o.stopKeepalive()
	if o.opts.PingInterval <= 0 {
		return
	}
	o.keepalive = o.newTicker(o.opts.PingInterval, o.ping)
}

func (o *Orchestrator) stopKeepalive() {
	o.keepalive.stop()
	o.keepalive = nil
}

func (o *Orchestrator) ping() {
	if o.connected {
		o.write(&signaling.Control{Command: signaling.CommandPing})
	}
}
