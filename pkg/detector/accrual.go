package detector

import (
	"math"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/window"
)

const (
	DefaultAccrualThreshold     = 2.0
	DefaultAccrualMinWindowSize = 500
)

// AccrualConfig tunes the accrual detector. Threshold is the exponent of the
// accepted false suspicion probability 10^-Threshold.
type AccrualConfig struct {
	Threshold     float64
	MinWindowSize int
}

func DefaultAccrualConfig() AccrualConfig {
	return AccrualConfig{
		Threshold:     DefaultAccrualThreshold,
		MinWindowSize: DefaultAccrualMinWindowSize,
	}
}

type accrualEntity struct {
	entity
	window *window.Window
}

// AccrualDetector assumes exponentially distributed interarrival times and
// sets the timeout so that a live entity is suspected with probability
// 10^-threshold. Until MinWindowSize samples exist the registered timeout is
// kept. A MinWindowSize below 1 is raised to 1, and a threshold whose
// multiplier is not finite is replaced by DefaultAccrualThreshold.
type AccrualDetector struct {
	registry[*accrualEntity]
	threshold     float64
	minWindowSize int
	multiplier    float64
}

var _ Detector = (*AccrualDetector)(nil)

func NewAccrual(cfg AccrualConfig, opts ...Option) *AccrualDetector {
	o := buildOptions(opts)
	if cfg.MinWindowSize < 1 {
		cfg.MinWindowSize = 1
	}
	mult := -math.Log(math.Pow(10, -cfg.Threshold))
	if math.IsInf(mult, 0) || math.IsNaN(mult) {
		o.log.Warn("accrual threshold out of range, using default",
			zap.Float64("threshold", cfg.Threshold), zap.Float64("default", DefaultAccrualThreshold))
		cfg.Threshold = DefaultAccrualThreshold
		mult = -math.Log(math.Pow(10, -cfg.Threshold))
	}
	return &AccrualDetector{
		registry: newRegistry(o.log, func(id string, now, timeout int64) *accrualEntity {
			return &accrualEntity{entity: newEntity(id, now, timeout), window: window.New()}
		}),
		threshold:     cfg.Threshold,
		minWindowSize: cfg.MinWindowSize,
		multiplier:    mult,
	}
}

func (d *AccrualDetector) MessageReceived(id string, now int64, kind MessageKind) error {
	e, err := d.lookup(id)
	if err != nil {
		return err
	}

	if kind == Ping {
		e.window.AddPing(now)
		if e.window.Size() >= d.minWindowSize {
			mean := math.Round(e.window.Mean())
			e.timeout = int64(d.multiplier * mean)
			d.timeoutChanged(id, e.timeout)
		}
	}

	e.lastHeard = now
	return nil
}
