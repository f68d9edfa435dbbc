package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrfd/pkg/detector"
)

// fddemo replays a short message trace against one detector and prints its
// answers.
func main() {
	algo := flag.String("algorithm", detector.AlgorithmFixed, "one of "+strings.Join(detector.Algorithms(), ", "))
	params := flag.String("params", "", "comma separated key=value detector options")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		log, _ = zap.NewDevelopment()
	}

	fd, err := detector.New(*algo, parseParams(*params), detector.WithLogger(log))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	const id = "object"
	must(fd.RegisterMonitored(id, 0, 100))
	must(fd.MessageReceived(id, 20, detector.Ping))
	must(fd.MessageReceived(id, 40, detector.Ping))
	must(fd.MessageReceived(id, 50, detector.Ping))
	must(fd.MessageSent(id, 30, detector.Ping))

	timeout, _ := fd.Timeout(id)
	failed110, _ := fd.IsFailed(id, 110)
	failed130, _ := fd.IsFailed(id, 130)
	next40, _ := fd.TimeToNextPing(id, 40)
	ping70, _ := fd.ShouldPing(id, 70)
	ping90, _ := fd.ShouldPing(id, 90)

	fmt.Printf("Algorithm: %s\n", *algo)
	fmt.Printf("Timeout: %d\n", timeout)
	fmt.Printf("Failed at 110: %v\n", failed110)
	fmt.Printf("Failed at 130: %v\n", failed130)
	fmt.Printf("Time to next ping at 40: %d\n", next40)
	fmt.Printf("Should ping at 70: %v\n", ping70)
	fmt.Printf("Should ping at 90: %v\n", ping90)

	must(fd.ReleaseMonitored(id))
}

func parseParams(s string) map[string]string {
	out := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
