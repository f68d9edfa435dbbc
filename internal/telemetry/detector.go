package telemetry

import (
	"strconv"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
)

// instrumented records detector activity under an "algorithm" label. It adds
// no locking; callers synchronise exactly as they would the wrapped detector.
type instrumented struct {
	detector.Detector
	algorithm string
}

// InstrumentDetector wraps d so message traffic, registrations, failure
// verdicts and recomputed timeouts are exported to Registry.
// Example:
//
//	d, _ := detector.New("bertier", params)
//	d = telemetry.InstrumentDetector("bertier", d)
func InstrumentDetector(algorithm string, d detector.Detector) detector.Detector {
	return &instrumented{Detector: d, algorithm: algorithm}
}

func (i *instrumented) RegisterMonitored(id string, now, timeout int64) error {
	if err := i.Detector.RegisterMonitored(id, now, timeout); err != nil {
		return err
	}
	MonitoredEntities.WithLabelValues(i.algorithm).Inc()
	return nil
}

func (i *instrumented) ReleaseMonitored(id string) error {
	if err := i.Detector.ReleaseMonitored(id); err != nil {
		return err
	}
	MonitoredEntities.WithLabelValues(i.algorithm).Dec()
	return nil
}

func (i *instrumented) MessageReceived(id string, now int64, kind detector.MessageKind) error {
	if err := i.Detector.MessageReceived(id, now, kind); err != nil {
		return err
	}
	MessagesTotal.WithLabelValues(i.algorithm, "received", kind.String()).Inc()
	if to, err := i.Detector.Timeout(id); err == nil {
		TimeoutUnits.WithLabelValues(i.algorithm).Observe(float64(to))
	}
	return nil
}

func (i *instrumented) MessageSent(id string, now int64, kind detector.MessageKind) error {
	if err := i.Detector.MessageSent(id, now, kind); err != nil {
		return err
	}
	MessagesTotal.WithLabelValues(i.algorithm, "sent", kind.String()).Inc()
	return nil
}

func (i *instrumented) IsFailed(id string, now int64) (bool, error) {
	failed, err := i.Detector.IsFailed(id, now)
	if err != nil {
		return false, err
	}
	FailureChecks.WithLabelValues(i.algorithm, strconv.FormatBool(failed)).Inc()
	return failed, nil
}
