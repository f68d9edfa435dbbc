package detector

import (
	"errors"
	"slices"
	"testing"
)

func allDetectors(t *testing.T) map[string]Detector {
	t.Helper()
	out := make(map[string]Detector)
	for _, name := range Algorithms() {
		d, err := New(name, nil)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		out[name] = d
	}
	return out
}

func TestNotFoundContract(t *testing.T) {
	for name, d := range allDetectors(t) {
		t.Run(name, func(t *testing.T) {
			calls := map[string]func() error{
				"Timeout":          func() error { _, err := d.Timeout("ghost"); return err },
				"SetTimeout":       func() error { return d.SetTimeout("ghost", 10) },
				"SetPingInterval":  func() error { return d.SetPingInterval("ghost", 10) },
				"MessageReceived":  func() error { return d.MessageReceived("ghost", 1, Ping) },
				"MessageSent":      func() error { return d.MessageSent("ghost", 1, Ping) },
				"IsFailed":         func() error { _, err := d.IsFailed("ghost", 1); return err },
				"IdleTime":         func() error { _, err := d.IdleTime("ghost", 1); return err },
				"TimeToNextPing":   func() error { _, err := d.TimeToNextPing("ghost", 1); return err },
				"ShouldPing":       func() error { _, err := d.ShouldPing("ghost", 1); return err },
				"ReleaseMonitored": func() error { return d.ReleaseMonitored("ghost") },
			}
			for op, call := range calls {
				if err := call(); !errors.Is(err, ErrNotFound) {
					t.Fatalf("%s on unregistered id: err = %v, want ErrNotFound", op, err)
				}
			}
		})
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	for name, d := range allDetectors(t) {
		t.Run(name, func(t *testing.T) {
			if err := d.RegisterMonitored("a", 0, 100); err != nil {
				t.Fatalf("RegisterMonitored: %v", err)
			}
			if err := d.SetTimeout("a", 42); err != nil {
				t.Fatalf("SetTimeout: %v", err)
			}
			if err := d.RegisterMonitored("a", 5, 200); !errors.Is(err, ErrAlreadyRegistered) {
				t.Fatalf("second RegisterMonitored: err = %v, want ErrAlreadyRegistered", err)
			}
			// The existing record is left untouched.
			if to, _ := d.Timeout("a"); to != 42 {
				t.Fatalf("Timeout = %d, want 42", to)
			}
		})
	}
}

func TestReleaseThenReregister(t *testing.T) {
	for name, d := range allDetectors(t) {
		t.Run(name, func(t *testing.T) {
			if err := d.RegisterMonitored("a", 0, 100); err != nil {
				t.Fatal(err)
			}
			if err := d.ReleaseMonitored("a"); err != nil {
				t.Fatalf("ReleaseMonitored: %v", err)
			}
			if _, err := d.IsFailed("a", 1); !errors.Is(err, ErrNotFound) {
				t.Fatalf("IsFailed after release: err = %v, want ErrNotFound", err)
			}
			if err := d.RegisterMonitored("a", 10, 300); err != nil {
				t.Fatalf("re-register: %v", err)
			}
			if to, _ := d.Timeout("a"); to != 300 {
				t.Fatalf("Timeout = %d, want 300", to)
			}
		})
	}
}

// Every strategy behaves like the fixed one until a second ping arrives.
func TestEndToEndScenario(t *testing.T) {
	for name, d := range allDetectors(t) {
		t.Run(name, func(t *testing.T) {
			const id = "objectA"
			if err := d.RegisterMonitored(id, 0, 100); err != nil {
				t.Fatal(err)
			}
			if err := d.MessageReceived(id, 20, Ping); err != nil {
				t.Fatal(err)
			}
			if err := d.MessageSent(id, 30, Ping); err != nil {
				t.Fatal(err)
			}

			if to, _ := d.Timeout(id); to != 100 {
				t.Fatalf("Timeout = %d, want 100", to)
			}
			if failed, _ := d.IsFailed(id, 110); failed {
				t.Fatal("IsFailed(110) = true, want false")
			}
			if failed, _ := d.IsFailed(id, 120); failed {
				t.Fatal("IsFailed(120) = true, want false (boundary is exclusive)")
			}
			if failed, _ := d.IsFailed(id, 130); !failed {
				t.Fatal("IsFailed(130) = false, want true")
			}
			if idle, _ := d.IdleTime(id, 70); idle != 50 {
				t.Fatalf("IdleTime(70) = %d, want 50", idle)
			}
			if left, _ := d.TimeToNextPing(id, 40); left != 40 {
				t.Fatalf("TimeToNextPing(40) = %d, want 40", left)
			}
			if due, _ := d.ShouldPing(id, 70); due {
				t.Fatal("ShouldPing(70) = true, want false")
			}
			if due, _ := d.ShouldPing(id, 90); !due {
				t.Fatal("ShouldPing(90) = false, want true")
			}
			if left, _ := d.TimeToNextPing(id, 100); left != -20 {
				t.Fatalf("TimeToNextPing(100) = %d, want -20", left)
			}
			if err := d.ReleaseMonitored(id); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestShouldPingBoundary(t *testing.T) {
	d := NewFixed()
	if err := d.RegisterMonitored("a", 0, 1000); err != nil {
		t.Fatal(err)
	}
	const interval, sent = 70, 400
	if err := d.SetPingInterval("a", interval); err != nil {
		t.Fatal(err)
	}
	if err := d.MessageSent("a", sent, Application); err != nil {
		t.Fatal(err)
	}

	if due, _ := d.ShouldPing("a", sent+interval); !due {
		t.Fatal("ShouldPing at exactly lastSent+interval = false, want true")
	}
	if due, _ := d.ShouldPing("a", sent+interval-1); due {
		t.Fatal("ShouldPing one unit early = true, want false")
	}
}

func TestFixedTimeoutNeverAdapts(t *testing.T) {
	d := NewFixed()
	if err := d.RegisterMonitored("a", 0, 100); err != nil {
		t.Fatal(err)
	}
	for now := int64(10); now <= 1000; now += 10 {
		if err := d.MessageReceived("a", now, Ping); err != nil {
			t.Fatal(err)
		}
	}
	if to, _ := d.Timeout("a"); to != 100 {
		t.Fatalf("Timeout = %d, want 100", to)
	}
	if err := d.SetTimeout("a", -1); err != nil {
		t.Fatal(err)
	}
	// Negative timeouts are accepted and mean "always failed".
	if failed, _ := d.IsFailed("a", 1000); !failed {
		t.Fatal("IsFailed with negative timeout = false, want true")
	}
}

func TestApplicationMessageOnlyUpdatesLastHeard(t *testing.T) {
	for name, d := range allDetectors(t) {
		t.Run(name, func(t *testing.T) {
			if err := d.RegisterMonitored("a", 0, 100); err != nil {
				t.Fatal(err)
			}
			for _, now := range []int64{10, 20, 30, 40} {
				if err := d.MessageReceived("a", now, Application); err != nil {
					t.Fatal(err)
				}
			}
			if to, _ := d.Timeout("a"); to != 100 {
				t.Fatalf("Timeout = %d, want 100", to)
			}
			if idle, _ := d.IdleTime("a", 45); idle != 5 {
				t.Fatalf("IdleTime = %d, want 5", idle)
			}
		})
	}
}

func TestMonitoredOrder(t *testing.T) {
	d := NewChen(DefaultChenConfig())
	for _, id := range []string{"n3", "n1", "n2"} {
		if err := d.RegisterMonitored(id, 0, 10); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.ReleaseMonitored("n1"); err != nil {
		t.Fatal(err)
	}
	if got, want := d.Monitored(), []string{"n3", "n2"}; !slices.Equal(got, want) {
		t.Fatalf("Monitored = %v, want %v", got, want)
	}
}

func TestMessageKindString(t *testing.T) {
	for k, want := range map[MessageKind]string{Application: "application", Ping: "ping", 9: "unknown"} {
		if got := k.String(); got != want {
			t.Fatalf("MessageKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
