package detector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/kv"
)

// entity is the state every strategy keeps for a monitored id.
type entity struct {
	id           string
	timeout      int64
	lastHeard    int64
	lastSent     int64
	pingInterval int64
}

func newEntity(id string, now, timeout int64) entity {
	return entity{
		id:           id,
		timeout:      timeout,
		lastHeard:    now,
		lastSent:     now,
		pingInterval: timeout / 2,
	}
}

func (e *entity) base() *entity { return e }

type record interface {
	base() *entity
}

// registry implements the parts of Detector that do not depend on the
// estimation strategy. Strategies embed it and supply MessageReceived.
type registry[E record] struct {
	store  *kv.Store[E]
	create func(id string, now, timeout int64) E
	log    *zap.Logger
}

func newRegistry[E record](log *zap.Logger, create func(id string, now, timeout int64) E) registry[E] {
	return registry[E]{
		store:  kv.NewStore[E](),
		create: create,
		log:    log,
	}
}

func (r *registry[E]) lookup(id string) (E, error) {
	e, ok := r.store.Get(id)
	if !ok {
		return e, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return e, nil
}

func (r *registry[E]) RegisterMonitored(id string, now, timeout int64) error {
	if !r.store.Insert(id, r.create(id, now, timeout)) {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, id)
	}
	r.log.Debug("registered monitored entity",
		zap.String("id", id), zap.Int64("now", now), zap.Int64("timeout", timeout))
	return nil
}

func (r *registry[E]) ReleaseMonitored(id string) error {
	if _, ok := r.store.Delete(id); !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	r.log.Debug("released monitored entity", zap.String("id", id))
	return nil
}

func (r *registry[E]) SetTimeout(id string, timeout int64) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.base().timeout = timeout
	return nil
}

func (r *registry[E]) Timeout(id string) (int64, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.base().timeout, nil
}

func (r *registry[E]) SetPingInterval(id string, interval int64) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.base().pingInterval = interval
	return nil
}

func (r *registry[E]) MessageSent(id string, now int64, _ MessageKind) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.base().lastSent = now
	return nil
}

func (r *registry[E]) IsFailed(id string, now int64) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	b := e.base()
	return now > b.lastHeard+b.timeout, nil
}

func (r *registry[E]) IdleTime(id string, now int64) (int64, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return now - e.base().lastHeard, nil
}

func (r *registry[E]) TimeToNextPing(id string, now int64) (int64, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	b := e.base()
	return b.pingInterval - (now - b.lastSent), nil
}

func (r *registry[E]) ShouldPing(id string, now int64) (bool, error) {
	left, err := r.TimeToNextPing(id, now)
	if err != nil {
		return false, err
	}
	return left <= 0, nil
}

func (r *registry[E]) Monitored() []string {
	return r.store.Keys()
}

func (r *registry[E]) timeoutChanged(id string, timeout int64) {
	r.log.Debug("timeout recomputed", zap.String("id", id), zap.Int64("timeout", timeout))
}
