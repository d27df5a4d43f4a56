package cortex

import (
	"context"
	"log"
	"sync"
	"time"
)

// maxHzStepFraction caps how much a single modulate() call may move a
// rhythm's current rate, preventing oscillation (§4.7).
const maxHzStepFraction = 0.10

// callbackBackoff is how long a rhythm pauses after its callback errors.
const callbackBackoff = time.Second

// Rhythm is one named damped oscillator: a rate that drifts toward a
// target by at most ±10% per modulate() call, invoking a registered
// callback at 1/current Hz while running.
type Rhythm struct {
	mu sync.Mutex

	Name    string
	Min     float64
	Max     float64
	Base    float64
	current float64

	callback func(ctx context.Context) error
	cancel   context.CancelFunc
}

// Current returns the rhythm's current rate in Hz.
func (r *Rhythm) Current() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Modulate nudges current toward target, damped to at most ±10% of
// current per call, and clamped to [Min, Max].
func (r *Rhythm) Modulate(target float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step := r.current * maxHzStepFraction
	switch {
	case target > r.current:
		r.current += step
		if r.current > target {
			r.current = target
		}
	case target < r.current:
		r.current -= step
		if r.current < target {
			r.current = target
		}
	}
	if r.current < r.Min {
		r.current = r.Min
	}
	if r.current > r.Max {
		r.current = r.Max
	}
}

// RhythmRegistry is the named-oscillator registry (§4.7): heartbeat, gate,
// retrieval, reasoning, consolidation, dreaming, each with its own band
// and callback. Grounded on the teacher's decay_worker.go ticker idiom,
// generalized to per-rhythm runtime-adjustable rates instead of one fixed
// interval.
type RhythmRegistry struct {
	mu      sync.Mutex
	rhythms map[string]*Rhythm
}

// NewRhythmRegistry builds the registry with the default named rhythms
// and bands from §4.7.
func NewRhythmRegistry() *RhythmRegistry {
	reg := &RhythmRegistry{rhythms: make(map[string]*Rhythm)}
	defaults := []struct {
		name           string
		min, max, base float64
	}{
		{"heartbeat", 1, 1, 1},
		{"gate", 0.5, 10, 2},
		{"retrieval", 1, 30, 10},
		{"reasoning", 0.5, 20, 2},
		{"consolidation", 0.05, 2, 0.2},
		{"dreaming", 0.005, 1, 0.01},
	}
	for _, d := range defaults {
		reg.rhythms[d.name] = &Rhythm{Name: d.name, Min: d.min, Max: d.max, Base: d.base, current: d.base}
	}
	return reg
}

// Get returns the named rhythm, or nil if unknown.
func (reg *RhythmRegistry) Get(name string) *Rhythm {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rhythms[name]
}

// Modulate adjusts a named rhythm toward target. No-op if the name is
// unregistered.
func (reg *RhythmRegistry) Modulate(name string, target float64) {
	if r := reg.Get(name); r != nil {
		r.Modulate(target)
	}
}

// Start registers a callback for the named rhythm and begins invoking it
// at 1/current Hz in a background goroutine. A callback error backs the
// rhythm off for one second before resuming its normal period.
func (reg *RhythmRegistry) Start(ctx context.Context, name string, callback func(ctx context.Context) error) {
	r := reg.Get(name)
	if r == nil {
		return
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.callback = callback
	r.mu.Unlock()

	go func() {
		for {
			r.mu.Lock()
			hz := r.current
			r.mu.Unlock()
			if hz <= 0 {
				hz = r.Min
			}
			period := time.Duration(1.0 / hz * float64(time.Second))

			select {
			case <-time.After(period):
			case <-ctx.Done():
				return
			}

			if err := callback(ctx); err != nil {
				log.Printf("[cortex] rhythm %q callback error: %v", name, err)
				select {
				case <-time.After(callbackBackoff):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// Stop halts the named rhythm's callback loop.
func (reg *RhythmRegistry) Stop(name string) {
	r := reg.Get(name)
	if r == nil {
		return
	}
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status returns every rhythm's current rate, for brain_status reporting.
func (reg *RhythmRegistry) Status() map[string]float64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make(map[string]float64, len(reg.rhythms))
	for name, r := range reg.rhythms {
		out[name] = r.Current()
	}
	return out
}
