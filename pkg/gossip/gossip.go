package gossip

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Run sweeps the membership every interval and probes the members that are
// due, until ctx is cancelled. Each probe is recorded as a sent ping and each
// successful probe as an ack.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, p Prober) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeDue(ctx, p)
		}
	}
}

// ProbeDue runs one sweep and probes every due member concurrently, returning
// once all probes have finished.
func (m *Monitor) ProbeDue(ctx context.Context, p Prober) {
	now := m.now()
	due := m.Sweep(now)

	var wg sync.WaitGroup
	for _, mb := range due {
		if err := m.Sent(mb.ID, MsgPing, now); err != nil {
			m.log.Debug("probe skipped", zap.String("id", string(mb.ID)), zap.Error(err))
			continue
		}
		wg.Add(1)
		go func(mb Member) {
			defer wg.Done()
			if err := p.Probe(ctx, mb); err != nil {
				m.log.Debug("probe failed", zap.String("id", string(mb.ID)), zap.Error(err))
				return
			}
			if err := m.Observe(mb.ID, MsgAck, m.now()); err != nil {
				m.log.Debug("ack dropped", zap.String("id", string(mb.ID)), zap.Error(err))
			}
		}(mb)
	}
	wg.Wait()
}
