package detector

import (
	"math"

	"github.com/ryandielhenn/zephyrfd/pkg/window"
)

// DefaultChenAlpha is the safety margin added to the mean interarrival time.
const DefaultChenAlpha int64 = 5000

type ChenConfig struct {
	Alpha int64
}

func DefaultChenConfig() ChenConfig {
	return ChenConfig{Alpha: DefaultChenAlpha}
}

type chenEntity struct {
	entity
	window *window.Window
}

// ChenDetector sets the timeout to the mean observed interarrival time plus a
// constant margin.
type ChenDetector struct {
	registry[*chenEntity]
	alpha int64
}

var _ Detector = (*ChenDetector)(nil)

func NewChen(cfg ChenConfig, opts ...Option) *ChenDetector {
	o := buildOptions(opts)
	return &ChenDetector{
		registry: newRegistry(o.log, func(id string, now, timeout int64) *chenEntity {
			return &chenEntity{entity: newEntity(id, now, timeout), window: window.New()}
		}),
		alpha: cfg.Alpha,
	}
}

func (d *ChenDetector) MessageReceived(id string, now int64, kind MessageKind) error {
	e, err := d.lookup(id)
	if err != nil {
		return err
	}

	if kind == Ping {
		e.window.AddPing(now)
		if e.window.Size() > 0 {
			e.timeout = int64(math.Round(e.window.Mean())) + d.alpha
			d.timeoutChanged(id, e.timeout)
		}
	}

	e.lastHeard = now
	return nil
}
