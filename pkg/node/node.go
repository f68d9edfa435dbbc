package node

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/gossip"
	"github.com/ryandielhenn/zephyrfd/pkg/ring"
)

// Node is one observer: it monitors the entities the ring assigns to it and
// forwards heartbeats for the others.
type Node struct {
	mon      *gossip.Monitor
	ring     *ring.HashRing
	self     string
	addr     string
	rf       int
	client   *http.Client
	log      *zap.Logger
	now      func() time.Time
	started  time.Time
	syncMu   sync.Mutex // serialises SyncEntities
	mu       sync.Mutex
	entities map[string]string // entity id -> addr, as last reported by discovery
}

func NewNode(mon *gossip.Monitor, r *ring.HashRing, self, addr string, replicas int, log *zap.Logger) *Node {
	if replicas <= 0 {
		replicas = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		mon:      mon,
		ring:     r,
		self:     self,
		addr:     addr,
		rf:       replicas,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log,
		now:      time.Now,
		started:  time.Now(),
		entities: make(map[string]string),
	}
}

// SetPeers replaces the observer set and rebalances which entities this node
// monitors.
func (n *Node) SetPeers(peers map[string]string) {
	n.ring.Replace(peers)
	n.mu.Lock()
	entities := n.entities
	n.mu.Unlock()
	n.SyncEntities(entities)
}

// SyncEntities makes the monitor track exactly the entities in the set that
// this node owns. Entities joined by hand through the API are left alone.
func (n *Node) SyncEntities(entities map[string]string) {
	n.syncMu.Lock()
	defer n.syncMu.Unlock()

	entities = maps.Clone(entities)
	n.mu.Lock()
	prev := n.entities
	n.entities = entities
	n.mu.Unlock()

	now := n.now()
	for id, addr := range entities {
		if !n.owns(id) {
			continue
		}
		// Dead members come back only by being heard from or by an explicit join.
		if mb, ok := n.mon.Get(gossip.NodeID(id)); ok && mb.State == gossip.StateDead {
			continue
		}
		if err := n.mon.Join(gossip.NodeID(id), addr, now); err != nil {
			n.log.Error("join entity", zap.String("id", id), zap.Error(err))
		}
	}
	for id := range prev {
		if _, still := entities[id]; still && n.owns(id) {
			continue
		}
		if _, ok := n.mon.Get(gossip.NodeID(id)); !ok {
			continue
		}
		if err := n.mon.Leave(gossip.NodeID(id)); err != nil {
			n.log.Error("leave entity", zap.String("id", id), zap.Error(err))
		}
	}
}

// owns reports whether this node should monitor id. With no peers known the
// node monitors everything.
func (n *Node) owns(id string) bool {
	if n.ring.Len() == 0 {
		return true
	}
	return n.ring.Owns(id, n.self, n.rf)
}
