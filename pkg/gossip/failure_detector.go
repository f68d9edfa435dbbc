package gossip

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
)

const (
	DefaultInitialTimeout = 5 * time.Second
	DefaultUnit           = time.Millisecond
)

// MonitorConfig controls how a Monitor drives its detector.
type MonitorConfig struct {
	// InitialTimeout is registered for every member that joins.
	InitialTimeout time.Duration
	// PingInterval overrides the detector's default of InitialTimeout/2.
	PingInterval time.Duration
	// DeadAfter is how long a suspect may stay silent before it is declared
	// dead and its detector state released. Zero keeps suspects forever.
	DeadAfter time.Duration
	// Unit is the length of one detector time unit.
	Unit time.Duration
}

// Status is a point-in-time answer for one member.
type Status struct {
	Member
	Failed     bool          `json:"failed"`
	ShouldPing bool          `json:"should_ping"`
	Timeout    time.Duration `json:"timeout"`
	Idle       time.Duration `json:"idle"`
	NextPing   time.Duration `json:"next_ping"`
}

// StateHook is called with the member after a transition and its previous
// state. It runs under the monitor lock and must not call back into it.
type StateHook func(m Member, from State)

type MonitorOption func(*Monitor)

func WithLogger(l *zap.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

func WithStateHook(h StateHook) MonitorOption {
	return func(m *Monitor) { m.hook = h }
}

// WithClock replaces time.Now for acknowledgements recorded by Run.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// Monitor serialises access to a detector and tracks member states.
type Monitor struct {
	mu      sync.Mutex
	fd      detector.Detector
	cfg     MonitorConfig
	members map[NodeID]*Member

	log  *zap.Logger
	hook StateHook
	now  func() time.Time
}

func NewMonitor(fd detector.Detector, cfg MonitorConfig, opts ...MonitorOption) *Monitor {
	if cfg.InitialTimeout <= 0 {
		cfg.InitialTimeout = DefaultInitialTimeout
	}
	if cfg.Unit <= 0 {
		cfg.Unit = DefaultUnit
	}
	m := &Monitor{
		fd:      fd,
		cfg:     cfg,
		members: make(map[NodeID]*Member),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) units(t time.Time) int64 { return t.UnixNano() / int64(m.cfg.Unit) }

func (m *Monitor) span(d time.Duration) int64 { return int64(d / m.cfg.Unit) }

func (m *Monitor) duration(u int64) time.Duration { return time.Duration(u) * m.cfg.Unit }

// Join starts monitoring id. Joining a live member only refreshes its
// address; joining a dead one starts over with a new incarnation.
func (m *Monitor) Join(id NodeID, addr string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.members[id]
	if ok && prev.State != StateDead {
		prev.Addr = addr
		return nil
	}
	var inc uint64 = 1
	if ok {
		inc = prev.Incarnation + 1
	}
	if err := m.register(id, t); err != nil {
		return err
	}
	m.members[id] = &Member{ID: id, Addr: addr, Incarnation: inc, State: StateAlive, LastUpdate: t}
	m.log.Info("member joined", zap.String("id", string(id)), zap.String("addr", addr), zap.Uint64("incarnation", inc))
	return nil
}

func (m *Monitor) register(id NodeID, t time.Time) error {
	if err := m.fd.RegisterMonitored(string(id), m.units(t), m.span(m.cfg.InitialTimeout)); err != nil {
		return err
	}
	if m.cfg.PingInterval > 0 {
		return m.fd.SetPingInterval(string(id), m.span(m.cfg.PingInterval))
	}
	return nil
}

// Leave stops monitoring id and forgets it.
func (m *Monitor) Leave(id NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[id]
	if !ok {
		return fmt.Errorf("%w: %q", detector.ErrNotFound, id)
	}
	if mb.State != StateDead {
		if err := m.fd.ReleaseMonitored(string(id)); err != nil {
			return err
		}
	}
	delete(m.members, id)
	m.log.Info("member left", zap.String("id", string(id)))
	return nil
}

// Observe records a message received from id at t. A suspect that is heard
// from becomes alive again; a dead member is re-registered first.
func (m *Monitor) Observe(id NodeID, typ MsgType, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[id]
	if !ok {
		return fmt.Errorf("%w: %q", detector.ErrNotFound, id)
	}
	if mb.State == StateDead {
		if err := m.register(id, t); err != nil {
			return err
		}
	}
	if err := m.fd.MessageReceived(string(id), m.units(t), typ.Kind()); err != nil {
		return err
	}
	mb.LastUpdate = t
	if mb.State != StateAlive {
		mb.Incarnation++
		m.transition(mb, StateAlive)
	}
	return nil
}

// Sent records a message sent to id at t.
func (m *Monitor) Sent(id NodeID, typ MsgType, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[id]
	if !ok || mb.State == StateDead {
		return fmt.Errorf("%w: %q", detector.ErrNotFound, id)
	}
	return m.fd.MessageSent(string(id), m.units(t), typ.Kind())
}

// Sweep re-evaluates every member at now and returns those due for a probe,
// sorted by ID.
func (m *Monitor) Sweep(now time.Time) []Member {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.units(now)
	var due []Member
	for _, mb := range m.members {
		if mb.State == StateDead {
			continue
		}
		id := string(mb.ID)

		failed, err := m.fd.IsFailed(id, u)
		if err != nil {
			m.log.Error("sweep: member without detector state", zap.String("id", id), zap.Error(err))
			continue
		}
		switch {
		case failed && mb.State == StateAlive:
			m.transition(mb, StateSuspect)
		case !failed && mb.State == StateSuspect:
			m.transition(mb, StateAlive)
		}

		if mb.State == StateSuspect && m.cfg.DeadAfter > 0 {
			idle, _ := m.fd.IdleTime(id, u)
			if idle >= m.span(m.cfg.DeadAfter) {
				if err := m.fd.ReleaseMonitored(id); err != nil {
					m.log.Error("sweep: release failed", zap.String("id", id), zap.Error(err))
				}
				mb.LastUpdate = now
				m.transition(mb, StateDead)
				continue
			}
		}

		if ok, _ := m.fd.ShouldPing(id, u); ok {
			due = append(due, *mb)
		}
	}
	slices.SortFunc(due, func(a, b Member) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return due
}

// Status answers the detector questions for id at now. Dead members report
// only their membership record.
func (m *Monitor) Status(id NodeID, now time.Time) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[id]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", detector.ErrNotFound, id)
	}
	st := Status{Member: *mb}
	if mb.State == StateDead {
		st.Failed = true
		return st, nil
	}

	sid, u := string(id), m.units(now)
	var err error
	if st.Failed, err = m.fd.IsFailed(sid, u); err != nil {
		return Status{}, err
	}
	if st.ShouldPing, err = m.fd.ShouldPing(sid, u); err != nil {
		return Status{}, err
	}
	to, _ := m.fd.Timeout(sid)
	idle, _ := m.fd.IdleTime(sid, u)
	next, _ := m.fd.TimeToNextPing(sid, u)
	st.Timeout, st.Idle, st.NextPing = m.duration(to), m.duration(idle), m.duration(next)
	return st, nil
}

func (m *Monitor) transition(mb *Member, to State) {
	from := mb.State
	mb.State = to
	fields := []zap.Field{
		zap.String("id", string(mb.ID)),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Uint64("incarnation", mb.Incarnation),
	}
	if to == StateAlive {
		m.log.Info("member state changed", fields...)
	} else {
		m.log.Warn("member state changed", fields...)
	}
	if m.hook != nil {
		m.hook(*mb, from)
	}
}
