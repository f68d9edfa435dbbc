package gossip

import (
	"fmt"
	"strings"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
)

// Vocabulary shared by the monitor and the HTTP surface: member states and
// message types.
type NodeID string

type State uint8

const (
	StateAlive State = iota
	StateSuspect
	StateDead
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateSuspect:
		return "suspect"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type MsgType uint8

const (
	MsgPing MsgType = iota
	MsgAck
	MsgIndirectPing
	MsgApp
)

var msgTypeNames = map[MsgType]string{
	MsgPing:         "ping",
	MsgAck:          "ack",
	MsgIndirectPing: "indirect-ping",
	MsgApp:          "app",
}

func (t MsgType) String() string {
	if n, ok := msgTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// Kind maps a message type to what the detector sees. Pings and acks are
// liveness samples; everything else is plain traffic.
func (t MsgType) Kind() detector.MessageKind {
	switch t {
	case MsgPing, MsgAck:
		return detector.Ping
	default:
		return detector.Application
	}
}

// ParseMsgType accepts the names printed by String, case-insensitively. The
// empty string means MsgPing.
func ParseMsgType(s string) (MsgType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MsgPing, nil
	}
	if s == "application" {
		return MsgApp, nil
	}
	for t, n := range msgTypeNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}
