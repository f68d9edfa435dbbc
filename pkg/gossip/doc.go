// Package gossip maintains a membership view on top of a failure detector
// from package detector. A Monitor maps wall-clock message observations to
// detector time units, moves members between Alive, Suspect and Dead, and
// decides who is due for a probe. It adds the locking the detectors lack, so
// one Monitor can be shared by HTTP handlers, discovery watchers and the
// probe loop.
//
// Typical usage:
//
//	fd, _ := detector.New("bertier", nil)
//	m := gossip.NewMonitor(fd, gossip.MonitorConfig{InitialTimeout: 5 * time.Second})
//	_ = m.Join("node1", "10.0.0.1:8080", time.Now())
//	go m.Run(ctx, time.Second, gossip.HTTPProber{})
//
// Observations for a member come from Observe (heartbeats pushed to us) and
// from acknowledged probes sent by Run.
package gossip
