package detector

import (
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccrualWaitsForMinWindow(t *testing.T) {
	d := NewAccrual(AccrualConfig{Threshold: 2, MinWindowSize: 3})
	if err := d.RegisterMonitored("a", 0, 1000); err != nil {
		t.Fatal(err)
	}

	for _, now := range []int64{100, 200, 300} {
		if err := d.MessageReceived("a", now, Ping); err != nil {
			t.Fatal(err)
		}
		if got, _ := d.Timeout("a"); got != 1000 {
			t.Fatalf("after ping at %d Timeout = %d, want 1000 (gate not reached)", now, got)
		}
	}

	if err := d.MessageReceived("a", 400, Ping); err != nil {
		t.Fatal(err)
	}
	// -ln(10^-2) * 100 = 460.517...
	if got, _ := d.Timeout("a"); got != 460 {
		t.Fatalf("Timeout = %d, want 460", got)
	}
}

func TestAccrualThresholdScalesTimeout(t *testing.T) {
	for _, tc := range []struct {
		threshold float64
		mean      int64
	}{
		{1, 100},
		{2, 250},
		{3, 40},
	} {
		d := NewAccrual(AccrualConfig{Threshold: tc.threshold, MinWindowSize: 1})
		if err := d.RegisterMonitored("a", 0, 1); err != nil {
			t.Fatal(err)
		}
		_ = d.MessageReceived("a", 10, Ping)
		_ = d.MessageReceived("a", 10+tc.mean, Ping)

		want := int64(tc.threshold * math.Ln10 * float64(tc.mean))
		got, _ := d.Timeout("a")
		if diff := got - want; diff < -1 || diff > 1 {
			t.Fatalf("threshold %v mean %d: Timeout = %d, want ~%d", tc.threshold, tc.mean, got, want)
		}
	}
}

func TestAccrualMinWindowClamped(t *testing.T) {
	d := NewAccrual(AccrualConfig{Threshold: 2, MinWindowSize: 0})
	if err := d.RegisterMonitored("a", 0, 1000); err != nil {
		t.Fatal(err)
	}
	// A lone ping yields no sample, so the timeout must survive it.
	_ = d.MessageReceived("a", 50, Ping)
	if got, _ := d.Timeout("a"); got != 1000 {
		t.Fatalf("Timeout = %d, want 1000", got)
	}
}

func TestAccrualDefaultGate(t *testing.T) {
	d := NewAccrual(DefaultAccrualConfig())
	if err := d.RegisterMonitored("a", 0, 7); err != nil {
		t.Fatal(err)
	}
	now := int64(0)
	for i := 0; i < DefaultAccrualMinWindowSize; i++ {
		now += 10
		_ = d.MessageReceived("a", now, Ping)
	}
	// 500 pings give 499 samples.
	if got, _ := d.Timeout("a"); got != 7 {
		t.Fatalf("Timeout = %d, want 7 before the gate", got)
	}
	_ = d.MessageReceived("a", now+10, Ping)
	if got, _ := d.Timeout("a"); got != 46 {
		t.Fatalf("Timeout = %d, want 46", got)
	}
}

func TestAccrualNonFiniteThresholdFallsBack(t *testing.T) {
	for _, threshold := range []float64{400, math.Inf(1), math.NaN()} {
		core, logs := observer.New(zap.WarnLevel)
		d := NewAccrual(AccrualConfig{Threshold: threshold, MinWindowSize: 1}, WithLogger(zap.New(core)))
		if logs.Len() != 1 {
			t.Fatalf("threshold %v: %d warnings, want 1", threshold, logs.Len())
		}
		if d.threshold != DefaultAccrualThreshold {
			t.Fatalf("threshold %v: kept %v, want default", threshold, d.threshold)
		}
		if err := d.RegisterMonitored("a", 0, 1000); err != nil {
			t.Fatal(err)
		}
		_ = d.MessageReceived("a", 0, Ping)
		_ = d.MessageReceived("a", 100, Ping)
		// -ln(10^-2) * 100 = 460.517...
		if got, _ := d.Timeout("a"); got != 460 {
			t.Fatalf("threshold %v: Timeout = %d, want 460", threshold, got)
		}
	}
}
