package detector

import (
	"math"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/window"
)

const (
	DefaultBertierGamma          = 0.1
	DefaultBertierBeta           = 1.0
	DefaultBertierPhi            = 4.0
	DefaultBertierModerationStep = int64(500)
)

// BertierConfig tunes the Bertier detector.
//
// Gamma smooths the delay and jitter estimators, Beta weighs the delay margin
// and Phi the jitter in the safety margin. ModerationStep is added to the
// entity's penalty every time a ping arrives after the timeout expired.
type BertierConfig struct {
	Gamma          float64
	Beta           float64
	Phi            float64
	ModerationStep int64
}

func DefaultBertierConfig() BertierConfig {
	return BertierConfig{
		Gamma:          DefaultBertierGamma,
		Beta:           DefaultBertierBeta,
		Phi:            DefaultBertierPhi,
		ModerationStep: DefaultBertierModerationStep,
	}
}

type bertierEntity struct {
	entity
	window *window.Window

	estimatedArrival int64
	delay            int64 // delay margin estimate
	deltaP           int64 // moderation penalty, only grows

	alpha float64 // safety margin
	vari  float64 // magnitude of estimation errors
	err   float64 // error of the last estimation
}

// BertierDetector combines Chen's arrival estimate with Jacobson-style
// delay and jitter tracking, plus a moderation penalty that permanently
// lengthens the timeout of entities that were late before.
type BertierDetector struct {
	registry[*bertierEntity]
	cfg BertierConfig
}

var _ Detector = (*BertierDetector)(nil)

func NewBertier(cfg BertierConfig, opts ...Option) *BertierDetector {
	o := buildOptions(opts)
	if cfg.ModerationStep < 0 {
		o.log.Warn("negative moderation step, using 0", zap.Int64("moderation_step", cfg.ModerationStep))
		cfg.ModerationStep = 0
	}
	return &BertierDetector{
		registry: newRegistry(o.log, func(id string, now, timeout int64) *bertierEntity {
			return &bertierEntity{
				entity:           newEntity(id, now, timeout),
				window:           window.New(),
				estimatedArrival: now + timeout,
				delay:            timeout / 4,
			}
		}),
		cfg: cfg,
	}
}

func (d *BertierDetector) MessageReceived(id string, now int64, kind MessageKind) error {
	e, err := d.lookup(id)
	if err != nil {
		return err
	}

	if kind == Ping {
		// Lateness is judged against the timeout in force before this ping.
		late := now > e.lastHeard+e.timeout
		e.window.AddPing(now)
		if e.window.Size() > 0 {
			d.update(e, now, late)
			d.timeoutChanged(id, e.timeout)
		}
	}

	e.lastHeard = now
	return nil
}

func (d *BertierDetector) update(e *bertierEntity, now int64, late bool) {
	g := d.cfg.Gamma

	e.err = float64(now - e.estimatedArrival - e.delay)
	e.delay += int64(math.Round(g * e.err))
	e.vari += g * (math.Abs(e.err) - e.vari)
	e.alpha = d.cfg.Beta*float64(e.delay) + d.cfg.Phi*e.vari

	e.estimatedArrival = now + int64(math.Round(e.window.Mean()))
	t := e.estimatedArrival + int64(math.Round(e.alpha))

	if late {
		e.deltaP += d.cfg.ModerationStep
	}
	e.timeout = t - now + e.deltaP
}
