package detector

// FixedDetector never adapts: the timeout is whatever the caller registered
// or last set.
type FixedDetector struct {
	registry[*entity]
}

var _ Detector = (*FixedDetector)(nil)

func NewFixed(opts ...Option) *FixedDetector {
	o := buildOptions(opts)
	return &FixedDetector{
		registry: newRegistry(o.log, func(id string, now, timeout int64) *entity {
			e := newEntity(id, now, timeout)
			return &e
		}),
	}
}

func (d *FixedDetector) MessageReceived(id string, now int64, _ MessageKind) error {
	e, err := d.lookup(id)
	if err != nil {
		return err
	}
	e.lastHeard = now
	return nil
}
