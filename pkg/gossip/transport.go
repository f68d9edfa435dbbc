package gossip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Prober checks liveness of a member. A nil error counts as an ack.
type Prober interface {
	Probe(ctx context.Context, m Member) error
}

type ProbeFunc func(ctx context.Context, m Member) error

func (f ProbeFunc) Probe(ctx context.Context, m Member) error { return f(ctx, m) }

// HTTPProber probes members with GET http://<addr><Path> and accepts any 2xx.
type HTTPProber struct {
	Client  *http.Client
	Path    string        // defaults to /healthz
	Timeout time.Duration // per probe, defaults to 1s
}

func (p HTTPProber) Probe(ctx context.Context, m Member) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	path := p.Path
	if path == "" {
		path = "/healthz"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	base := m.Addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(base, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("probe %s: status %d", m.ID, resp.StatusCode)
	}
	return nil
}
