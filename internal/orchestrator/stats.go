package orchestrator

import (
	"time"
)

const defaultStatsInterval = time.Second

// statsPoller reports transport statistics of registered sessions on one
// shared ticker.
type statsPoller struct {
	o        *Orchestrator
	ids      map[string]struct{}
	interval time.Duration
	ticker   *ticker
}

func newStatsPoller(o *Orchestrator) *statsPoller {
	return &statsPoller{o: o, ids: make(map[string]struct{})}
}

// RegisterStatsListener starts reporting stats of streamID through
// OnStats every interval. The interval is shared by all listeners.
func (o *Orchestrator) RegisterStatsListener(streamID string, interval time.Duration) error {
	return o.enqueue(func() { o.stats.register(o.registry.DefaultID(streamID), interval) })
}

func (o *Orchestrator) UnregisterStatsListener(streamID string) error {
	return o.enqueue(func() { o.stats.unregister(streamID) })
}

func (p *statsPoller) register(id string, interval time.Duration) {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	p.ids[id] = struct{}{}
	if p.ticker != nil && p.interval == interval {
		return
	}
	p.ticker.stop()
	p.interval = interval
	p.ticker = p.o.newTicker(interval, p.poll)
}

func (p *statsPoller) unregister(id string) {
	if _, ok := p.ids[id]; !ok {
		return
	}
	delete(p.ids, id)
	if len(p.ids) == 0 {
		p.stop()
	}
}

func (p *statsPoller) stop() {
	p.ticker.stop()
	p.ticker = nil
}

func (p *statsPoller) poll() {
	for id := range p.ids {
		s, ok := p.o.registry.Get(id)
		if !ok || s.Media == nil {
			continue
		}
		stats, err := s.Media.Stats()
		if err != nil {
			p.o.log.Debug().Err(err).Str("stream_id", id).Msg("stats unavailable")
			continue
		}
		if h := p.o.handler.OnStats; h != nil {
			h(id, stats)
		}
	}
}
