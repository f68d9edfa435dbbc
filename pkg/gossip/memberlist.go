package gossip

import (
	"slices"
	"strings"
	"time"
)

// Member is the monitor's view of one monitored entity.
type Member struct {
	ID          NodeID    `json:"id"`
	Addr        string    `json:"addr"`
	Incarnation uint64    `json:"incarnation"` // bumped each time the member comes back
	State       State     `json:"state"`
	LastUpdate  time.Time `json:"last_update"` // last state change or message
}

// MemberList is the read side of the membership view.
type MemberList interface {
	All() []Member
	Get(id NodeID) (Member, bool)
}

var _ MemberList = (*Monitor)(nil)

// All returns a copy of every member, sorted by ID.
func (m *Monitor) All() []Member {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Member, 0, len(m.members))
	for _, mb := range m.members {
		out = append(out, *mb)
	}
	slices.SortFunc(out, func(a, b Member) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

func (m *Monitor) Get(id NodeID) (Member, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[id]
	if !ok {
		return Member{}, false
	}
	return *mb, true
}

// Counts returns the number of members in each state.
func (m *Monitor) Counts() map[State]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[State]int, 3)
	for _, mb := range m.members {
		out[mb.State]++
	}
	return out
}
