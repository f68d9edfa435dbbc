// Package discovery registers observers in etcd and watches the observer and
// entity prefixes so every node shares the same view of who monitors whom.
package discovery

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Key layout under a deployment prefix such as /zephyrfd.
const (
	ObserversDir = "/observers/"
	EntitiesDir  = "/entities/"
)

func NewClient(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
}

// RegisterNode writes key=addr under a lease of ttl seconds and keeps the
// lease alive until the returned cancel func is called.
func RegisterNode(ctx context.Context, cli *clientv3.Client, key, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err := cli.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("put %s: %w", key, err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("keepalive: %w", err)
	}
	go func() {
		// drain responses so the client does not log a full channel
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// Put writes key=value without a lease. Used to register entities.
func Put(ctx context.Context, cli *clientv3.Client, key, value string) error {
	_, err := cli.Put(ctx, key, value)
	return err
}

// WatchPeers loads every key under prefix, calls fn with the id -> value
// map, then calls fn again after each batch of changes. Ids are keys with the
// prefix stripped. It blocks until ctx is cancelled or the watch fails.
func WatchPeers(ctx context.Context, cli *clientv3.Client, prefix string, log *zap.Logger, fn func(map[string]string)) error {
	if log == nil {
		log = zap.NewNop()
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("get %s: %w", prefix, err)
	}
	peers := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		peers[strings.TrimPrefix(string(kv.Key), prefix)] = string(kv.Value)
	}
	fn(maps.Clone(peers))

	wch := cli.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(resp.Header.Revision+1))
	for wresp := range wch {
		if err := wresp.Err(); err != nil {
			return fmt.Errorf("watch %s: %w", prefix, err)
		}
		if applyEvents(peers, prefix, wresp.Events) {
			log.Debug("peer set changed", zap.String("prefix", prefix), zap.Int("peers", len(peers)))
			fn(maps.Clone(peers))
		}
	}
	return ctx.Err()
}

// applyEvents folds watch events into peers and reports whether it changed.
func applyEvents(peers map[string]string, prefix string, evs []*clientv3.Event) bool {
	changed := false
	for _, ev := range evs {
		if ev.Kv == nil {
			continue
		}
		id := strings.TrimPrefix(string(ev.Kv.Key), prefix)
		switch ev.Type {
		case mvccpb.PUT:
			if old, ok := peers[id]; !ok || old != string(ev.Kv.Value) {
				peers[id] = string(ev.Kv.Value)
				changed = true
			}
		case mvccpb.DELETE:
			if _, ok := peers[id]; ok {
				delete(peers, id)
				changed = true
			}
		}
	}
	return changed
}
