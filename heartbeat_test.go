package cortex

import "testing"

// TestCircuitBreakerHaltsAwakeEngineWithinOneTick is invariant 7: once the
// error rate crosses the circuit-breaker threshold, the AwakeEngine is put
// to sleep in the same tick that trips it.
func TestCircuitBreakerHaltsAwakeEngineWithinOneTick(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	awake := NewAwakeEngine(nil, cfg)
	awake.running = true // simulate a running engine being interrupted

	h := NewHeartbeat(nil, nil)
	h.SetAwakeEngine(awake)

	// Prime the error window well above circuitBreakerRate.
	h.errorWindow = make([]int, errorWindowSize)
	for i := range h.errorWindow {
		h.errorWindow[i] = 100
	}

	h.checkCircuitBreaker(BrainSnapshot{})

	if !h.halted {
		t.Fatalf("expected the circuit breaker to trip")
	}
	if awake.Mode() != ModeSleeping {
		t.Fatalf("expected AwakeEngine to be SLEEPING after the breaker trips, got %v", awake.Mode())
	}
}

func TestCircuitBreakerStaysOpenBelowThreshold(t *testing.T) {
	h := NewHeartbeat(nil, nil)
	h.errorWindow = []int{0, 0, 0}
	h.checkCircuitBreaker(BrainSnapshot{})
	if h.halted {
		t.Fatalf("circuit breaker should not trip with a clean error window")
	}
}

func TestHistoryReturnsMostRecentNOldestFirst(t *testing.T) {
	h := NewHeartbeat(nil, nil)
	for i := 1; i <= 5; i++ {
		h.history = append(h.history, BrainSnapshot{Tick: i})
	}
	last3 := h.History(3)
	if len(last3) != 3 || last3[0].Tick != 3 || last3[2].Tick != 5 {
		t.Fatalf("expected last 3 snapshots oldest-first [3,4,5], got %+v", last3)
	}
}

func TestStopIsSafeWithoutStart(t *testing.T) {
	h := NewHeartbeat(nil, nil)
	h.Stop() // must not block or panic
}
