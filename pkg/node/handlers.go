package node

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
	"github.com/ryandielhenn/zephyrfd/pkg/gossip"
)

// forwardedHeader marks a request already forwarded once, so a stale ring on
// the receiving side cannot bounce it back.
const forwardedHeader = "X-Zephyrfd-Forwarded"

// Wrapper decorates a handler registered under op, e.g. with metrics.
type Wrapper func(op string, h http.Handler) http.Handler

// Routes registers the observer API on mux.
func (n *Node) Routes(mux *http.ServeMux, wrap Wrapper) {
	if wrap == nil {
		wrap = func(_ string, h http.Handler) http.Handler { return h }
	}
	mux.Handle("GET /healthz", wrap("healthz", http.HandlerFunc(n.Healthz)))
	mux.Handle("GET /info", wrap("info", http.HandlerFunc(n.Info)))
	mux.Handle("POST /heartbeat/{id}", wrap("heartbeat", http.HandlerFunc(n.Heartbeat)))
	mux.Handle("GET /members", wrap("members", http.HandlerFunc(n.Members)))
	mux.Handle("GET /members/{id}", wrap("member", http.HandlerFunc(n.Member)))
	mux.Handle("PUT /members/{id}", wrap("join", http.HandlerFunc(n.Join)))
	mux.Handle("DELETE /members/{id}", wrap("leave", http.HandlerFunc(n.Leave)))
}

// Healthz returns 200 OK to indicate the Node is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes a JSON payload describing this observer.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Self      string            `json:"self"`
		Addr      string            `json:"addr"`
		PID       int               `json:"pid"`
		Now       time.Time         `json:"now"`
		Uptime    string            `json:"uptime"`
		Members   int               `json:"members"`
		Observers map[string]string `json:"observers"`
	}
	writeJSON(w, http.StatusOK, resp{
		Self:      n.self,
		Addr:      n.addr,
		PID:       os.Getpid(),
		Now:       n.now(),
		Uptime:    time.Since(n.started).Round(time.Second).String(),
		Members:   len(n.mon.All()),
		Observers: n.ring.Nodes(),
	})
}

// Heartbeat records a message from the entity in the path. ?kind= selects
// ping (default), ack, app or indirect-ping. Heartbeats for entities owned by
// another observer are forwarded to it.
func (n *Node) Heartbeat(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	typ, err := gossip.ParseMsgType(req.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Header.Get(forwardedHeader) == "" {
		owner, owned, ok := n.OwnerForEntity(id)
		if !ok {
			http.Error(w, "no observer for entity", http.StatusServiceUnavailable)
			return
		}
		if !owned {
			n.log.Debug("forward heartbeat", zap.String("id", id), zap.String("owner", owner))
			n.Forward(w, req, owner)
			return
		}
	}

	if err := n.mon.Observe(gossip.NodeID(id), typ, n.now()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members lists the status of every monitored entity.
func (n *Node) Members(w http.ResponseWriter, _ *http.Request) {
	now := n.now()
	out := make([]gossip.Status, 0)
	for _, mb := range n.mon.All() {
		st, err := n.mon.Status(mb.ID, now)
		if err != nil {
			// left between All and Status
			continue
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

// Member returns the status of one entity.
func (n *Node) Member(w http.ResponseWriter, req *http.Request) {
	st, err := n.mon.Status(gossip.NodeID(req.PathValue("id")), n.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Join starts monitoring the entity in the path at ?addr=.
func (n *Node) Join(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	addr := req.URL.Query().Get("addr")
	if addr == "" {
		http.Error(w, "missing addr", http.StatusBadRequest)
		return
	}
	if err := n.mon.Join(gossip.NodeID(id), addr, n.now()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave stops monitoring the entity in the path.
func (n *Node) Leave(w http.ResponseWriter, req *http.Request) {
	if err := n.mon.Leave(gossip.NodeID(req.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Forward forwards a http request to the observer that owns the entity.
func (n *Node) Forward(w http.ResponseWriter, req *http.Request, owner string) {
	if owner == "" {
		http.Error(w, "no observer for entity", http.StatusServiceUnavailable)
		return
	}
	if NormalizeHostPort(n.addr, "8080") == owner {
		// last-resort safety; shouldn't happen if ownership checks agree
		http.Error(w, "refusing to forward to self", http.StatusInternalServerError)
		return
	}
	target := *req.URL
	target.Scheme = "http"
	target.Host = owner

	out, err := http.NewRequestWithContext(req.Context(), req.Method, target.String(), req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	out.Header = req.Header.Clone()
	out.Header.Set("X-Forwarded-For", req.RemoteAddr)
	out.Header.Set(forwardedHeader, n.self)

	resp, err := n.client.Do(out)
	if err != nil {
		n.log.Warn("forward failed", zap.String("owner", owner), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, detector.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, detector.ErrAlreadyRegistered):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
