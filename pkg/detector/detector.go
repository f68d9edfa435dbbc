// Package detector implements adaptive failure detectors for remotely
// monitored entities.
//
// A Detector is fed the messages observed for each entity and answers three
// questions at any logical time: has the entity failed, should it be pinged
// now, and what is its current suspicion timeout. Four strategies share the
// same contract:
//
//	fixed       caller-set timeout, never adapted
//	chen        mean interarrival time plus a constant margin
//	bertier     Chen's estimate plus a jitter-driven margin and a moderation
//	            penalty that grows every time a ping arrives late
//	phiaccrual  exponential tail bound on the mean interarrival time
//
// Time is an int64 in whatever unit the caller uses consistently. Detectors
// do no I/O and are not safe for concurrent use; wrap them with a lock (see
// package gossip) when sharing one between goroutines.
package detector

import (
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for operations on an id that is not registered.
	ErrNotFound = errors.New("detector: monitored entity not found")
	// ErrAlreadyRegistered is returned by RegisterMonitored for a known id.
	ErrAlreadyRegistered = errors.New("detector: monitored entity already registered")
	// ErrInvalidConfiguration marks a tunable that could not be parsed. It is
	// logged and replaced by the default, never returned from a constructor.
	ErrInvalidConfiguration = errors.New("detector: invalid configuration")
	// ErrUnknownAlgorithm is returned by New for an unrecognised name.
	ErrUnknownAlgorithm = errors.New("detector: unknown algorithm")
)

// MessageKind tells application traffic apart from liveness probes.
type MessageKind uint8

const (
	Application MessageKind = iota
	Ping
)

func (k MessageKind) String() string {
	switch k {
	case Application:
		return "application"
	case Ping:
		return "ping"
	default:
		return "unknown"
	}
}

// Detector is the capability set every strategy exposes.
type Detector interface {
	// RegisterMonitored starts tracking id with an initial timeout. The ping
	// interval defaults to timeout/2.
	RegisterMonitored(id string, now, timeout int64) error
	// ReleaseMonitored discards all state for id.
	ReleaseMonitored(id string) error

	SetTimeout(id string, timeout int64) error
	Timeout(id string) (int64, error)
	SetPingInterval(id string, interval int64) error

	// MessageReceived records a message from id. Only Ping messages feed the
	// estimator; any kind counts as having heard from the entity.
	MessageReceived(id string, now int64, kind MessageKind) error
	// MessageSent records a message sent to id.
	MessageSent(id string, now int64, kind MessageKind) error

	// IsFailed reports now > lastHeard + timeout.
	IsFailed(id string, now int64) (bool, error)
	// IdleTime is the time since id was last heard from.
	IdleTime(id string, now int64) (int64, error)
	// TimeToNextPing is pingInterval - (now - lastSent); negative when overdue.
	TimeToNextPing(id string, now int64) (int64, error)
	// ShouldPing reports TimeToNextPing <= 0.
	ShouldPing(id string, now int64) (bool, error)

	// Monitored lists registered ids in registration order.
	Monitored() []string
}

type options struct {
	log *zap.Logger
}

// Option configures a detector.
type Option func(*options)

// WithLogger sets the logger used for debug output and configuration warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
