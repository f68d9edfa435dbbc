package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ryandielhenn/zephyrfd/discovery"
)

// bench joins n entities on an observer and pushes heartbeats for them. With
// -etcd the entities are published under <prefix>/entities/ instead, and the
// observers pick them up through discovery.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "observer address")
	n := flag.Int("n", 100, "entities")
	beats := flag.Int("beats", 50, "heartbeats per entity")
	conc := flag.Int("c", 32, "concurrency")
	interval := flag.Duration("interval", 10*time.Millisecond, "gap between heartbeats of one entity")
	etcd := flag.String("etcd", "", "comma separated etcd endpoints; register entities there")
	prefix := flag.String("prefix", "/zephyrfd", "etcd key prefix")
	flag.Parse()

	var cli *clientv3.Client
	if *etcd != "" {
		var err error
		cli, err = discovery.NewClient(strings.Split(*etcd, ","), 5*time.Second)
		if err != nil {
			log.Fatalf("etcd: %v", err)
		}
		defer cli.Close()
	}

	client := &http.Client{Timeout: 5 * time.Second}
	do := func(method, url string) int {
		req, err := http.NewRequest(method, url, nil)
		if err != nil {
			return 0
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode
	}

	wg := sync.WaitGroup{}
	start := time.Now()
	ch := make(chan struct{}, *conc)
	var mu sync.Mutex
	failures := 0

	for i := 0; i < *n; i++ {
		wg.Add(1)
		ch <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-ch }()
			id := fmt.Sprintf("bench-%d", i)
			if cli != nil {
				key := *prefix + discovery.EntitiesDir + id
				if err := discovery.Put(context.Background(), cli, key, "127.0.0.1:1"); err != nil {
					log.Printf("register %s: %v", id, err)
				}
			} else {
				do(http.MethodPut, fmt.Sprintf("%s/members/%s?addr=127.0.0.1:1", *addr, id))
			}
			for b := 0; b < *beats; b++ {
				if code := do(http.MethodPost, *addr+"/heartbeat/"+id+"?kind=ping"); code != http.StatusNoContent {
					mu.Lock()
					failures++
					mu.Unlock()
				}
				time.Sleep(*interval)
			}
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)
	total := *n * *beats
	fmt.Printf("Sent %d heartbeats in %s (%.2f hb/s), %d failed\n", total, dur, float64(total)/dur.Seconds(), failures)
}
