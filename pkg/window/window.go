// Package window keeps a bounded history of heartbeat interarrival times
// together with their running mean.
package window

// MaxSize is the maximum number of samples a Window holds. Older samples are
// evicted first.
const MaxSize = 1000

// Window is a FIFO of interarrival samples with an incrementally maintained
// mean. The zero value is ready to use. A Window is not safe for concurrent use.
type Window struct {
	samples []int64 // ring buffer, len grows to MaxSize
	head    int     // index of the oldest sample once full
	mean    float64

	lastPing int64
	pinged   bool
}

// New returns an empty window.
func New() *Window {
	return &Window{}
}

// AddPing records a ping observed at now. Every ping after the first one adds
// the time elapsed since the previous ping as a sample.
func (w *Window) AddPing(now int64) {
	if w.pinged {
		w.AddSample(now - w.lastPing)
	}
	w.lastPing = now
	w.pinged = true
}

// AddSample appends x, evicting the oldest sample when the window is full.
//
// While filling, the mean is updated with the incremental formula over the new
// count. Once full, it is shifted by (x - evicted) / MaxSize, where the
// division is integral and truncates toward zero.
func (w *Window) AddSample(x int64) {
	if len(w.samples) < MaxSize {
		w.samples = append(w.samples, x)
		size := len(w.samples)
		w.mean = (w.mean*float64(size-1) + float64(x)) / float64(size)
		return
	}

	evicted := w.samples[w.head]
	w.samples[w.head] = x
	w.head = (w.head + 1) % MaxSize
	w.mean += float64((x - evicted) / MaxSize)
}

// Size returns the number of samples currently held.
func (w *Window) Size() int { return len(w.samples) }

// Mean returns the running mean of the held samples, 0 when empty.
func (w *Window) Mean() float64 { return w.mean }

// LastPing returns the timestamp of the most recent ping and whether any ping
// was recorded.
func (w *Window) LastPing() (int64, bool) { return w.lastPing, w.pinged }

// Samples returns a copy of the held samples, oldest first.
func (w *Window) Samples() []int64 {
	out := make([]int64, 0, len(w.samples))
	out = append(out, w.samples[w.head:]...)
	return append(out, w.samples[:w.head]...)
}
