package cortex

import (
	"math"
	"sync"
)

// SeekingDrive tracks intrinsic motivation and mints the Market's currency
// each tick (§4.3). Grounded on original_source/core/seeking_drive.py,
// translated into the teacher's small-struct-with-mutex idiom.
type SeekingDrive struct {
	mu sync.Mutex

	level float64 // displayed, [0.1, 1.0]
	target float64 // internal set-point, floor 0.3

	baseMintRate float64 // credits/second at baseline

	errorSensitivity float64
	noveltyBoost     float64
	decayRate        float64
}

// NewSeekingDrive creates a drive at its neutral starting point.
func NewSeekingDrive() *SeekingDrive {
	return &SeekingDrive{
		level:            0.5,
		target:           0.5,
		baseMintRate:     100.0,
		errorSensitivity: 0.5,
		noveltyBoost:     0.2,
		decayRate:        0.05,
	}
}

// UpdateFromExperience shifts the target set-point by a prediction-error
// and novelty signal, clamped to [0.1, 1.0].
func (d *SeekingDrive) UpdateFromExperience(predictionError, novelty float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := predictionError*d.errorSensitivity + novelty*d.noveltyBoost
	d.target = clampUnit(d.target+delta, 0.1, 1.0)
}

// MintCurrency decays the target toward 0.3, moves the displayed level
// toward the target proportional to dt, and returns the newly minted
// credits. The level**2 * 5 curve is load-bearing: at level 0.1 minting is
// 5% of base_mint_rate, at 1.0 it is 500%.
func (d *SeekingDrive) MintCurrency(dt float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.target = d.target * (1 - d.decayRate*dt)
	if d.target < 0.3 {
		d.target = 0.3
	}

	diff := d.target - d.level
	d.level += diff * math.Min(1.0, dt*0.5)

	multiplier := math.Pow(d.level, 2) * 5
	return d.baseMintRate * multiplier * dt
}

// EvaluateProposal approves an innovation grant iff utility/cost clears an
// ROI bar that falls as curiosity (level) rises: high curiosity tolerates
// riskier bets.
func (d *SeekingDrive) EvaluateProposal(cost, utility float64) bool {
	if cost <= 0 {
		return true
	}
	d.mu.Lock()
	level := d.level
	d.mu.Unlock()

	roi := utility / cost
	minROI := 2.0 - level*1.5
	return roi >= minROI
}

// Level returns the displayed drive level.
func (d *SeekingDrive) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// Target returns the internal set-point.
func (d *SeekingDrive) Target() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// GetStatus returns a BrainSnapshot-shaped status map for the Heartbeat.
func (d *SeekingDrive) GetStatus() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"level":     d.level,
		"target":    d.target,
		"mint_rate": d.baseMintRate * math.Pow(d.level, 2) * 5,
	}
}

func clampUnit(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
