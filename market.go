package cortex

import (
	"sort"
	"sync"
	"time"
)

// Resource names for the standard auction (§4.4).
const (
	ResourceComputeRPM = "COMPUTE_RPM"
	ResourceMemorySlot = "MEMORY_SLOT"
	ResourcePowerLease = "POWER_LEASE"
)

// Per-tick resource availability, fixed.
const (
	computeRPMPerTick  = 60.0
	memorySlotPerTick  = 1
	powerLeasePerTick  = 1
	energyLowThreshold = 20.0
	surgeMultiplier    = 10.0
	busyRPMThreshold   = 15.0
)

// Bid is one agent's request for a resource this tick.
type Bid struct {
	AgentID  string
	Resource string
	Amount   float64
	Value    float64
}

// GrantRequest is an innovation-grant proposal evaluated against
// SeekingDrive's ROI bar.
type GrantRequest struct {
	AgentID string
	Cost    float64
	Utility float64
	Reason  string
}

// PowerLease is an exclusive per-tick compute allocation, broken only by
// an interrupt-class bid (§4.4 step 6).
type PowerLease struct {
	AgentID  string
	Start    time.Time
	Duration time.Duration
	Cost     float64
}

func (l PowerLease) end() time.Time { return l.Start.Add(l.Duration) }

// Allocation is one resource grant produced by a tick.
type Allocation struct {
	Resource string
	Winner   string
	Amount   float64
	Cost     float64
}

// Market is the shared internal resource market (§4.4): wallets, auction,
// power lease, energy, and innovation grants. Grounded on
// original_source/core/internal_economy.py, translated into the teacher's
// mutex-guarded-struct idiom (Market wallets/power_lease/energy are
// mutated only inside Tick, readable under a read lock per §5).
type Market struct {
	mu sync.RWMutex

	drive *SeekingDrive

	wallets map[string]float64
	lease   *PowerLease

	energyLevel   float64
	rechargeRate  float64
	drainRateBase float64

	pendingGrants []GrantRequest
	lastTick      time.Time

	totalTransactions int64
	lastAllocations   map[string][]Allocation
}

// NewMarket creates a market backed by the given SeekingDrive.
func NewMarket(drive *SeekingDrive) *Market {
	return &Market{
		drive:         drive,
		wallets:       make(map[string]float64),
		energyLevel:   100.0,
		rechargeRate:  10.0,
		drainRateBase: 2.0,
		lastTick:      time.Now(),
	}
}

// RegisterAgent ensures an agent has a wallet, seeded with initial credits.
func (m *Market) RegisterAgent(agentID string, initialCredits float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.wallets[agentID]; !ok {
		m.wallets[agentID] = initialCredits
	}
}

// Balance returns an agent's current wallet balance.
func (m *Market) Balance(agentID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wallets[agentID]
}

// EnergyLevel returns the current metabolic energy level, [0, 100].
func (m *Market) EnergyLevel() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.energyLevel
}

// SubmitProposal queues an innovation grant proposal for the next tick.
func (m *Market) SubmitProposal(req GrantRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingGrants = append(m.pendingGrants, req)
}

// TransferCredits atomically moves credits between two registered wallets.
// Soft-fails (returns false) on insufficient funds or an unknown receiver —
// cooperation never panics or propagates an error (§4.4).
func (m *Market) TransferCredits(sender, receiver string, amount float64) bool {
	if amount <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wallets[sender] < amount {
		return false
	}
	if _, ok := m.wallets[receiver]; !ok {
		return false
	}
	m.wallets[sender] -= amount
	m.wallets[receiver] += amount
	m.totalTransactions++
	return true
}

// Tick runs the §4.4 auction protocol once per Heartbeat tick.
func (m *Market) Tick(bids []Bid) map[string][]Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	dt := now.Sub(m.lastTick).Seconds()
	if dt <= 0 {
		dt = 1.0
	}
	m.lastTick = now

	// 2. Ephemeral reset — wallets zeroed before grants (invariant §8.6).
	for agent := range m.wallets {
		m.wallets[agent] = 0
	}

	// 3. UBI grant.
	minted := m.drive.MintCurrency(dt)
	if len(m.wallets) > 0 {
		grant := minted / float64(len(m.wallets))
		for agent := range m.wallets {
			m.wallets[agent] += grant
		}
	}

	// 4. Innovation grants.
	if len(m.pendingGrants) > 0 {
		for _, req := range m.pendingGrants {
			if m.drive.EvaluateProposal(req.Cost, req.Utility) {
				if _, ok := m.wallets[req.AgentID]; ok {
					m.wallets[req.AgentID] += req.Cost
				}
			}
		}
		m.pendingGrants = nil
	}

	// 5. Scarcity multiplier.
	multiplier := 1.0
	if m.energyLevel < energyLowThreshold {
		multiplier = surgeMultiplier
	}

	// 6. Lease arbitration.
	if m.lease != nil {
		if now.Before(m.lease.end()) {
			threshold := m.lease.Cost * 50.0
			var high []Bid
			for _, b := range bids {
				if b.Value > threshold {
					high = append(high, b)
				}
			}
			if len(high) == 0 {
				result := map[string][]Allocation{
					ResourcePowerLease: {{Resource: ResourcePowerLease, Winner: m.lease.AgentID, Amount: 0}},
				}
				m.lastAllocations = result
				return result
			}
			winner := high[0]
			for _, b := range high[1:] {
				if b.Value > winner.Value {
					winner = b
				}
			}
			// Interrupt: may overdraw the winner's wallet (deliberate, §4.4/§9).
			m.wallets[winner.AgentID] -= winner.Value
			m.lease = nil
			result := map[string][]Allocation{
				winner.Resource: {{Resource: winner.Resource, Winner: winner.AgentID, Amount: winner.Amount, Cost: winner.Value}},
			}
			m.lastAllocations = result
			m.updateEnergy(true, dt)
			return result
		}
		m.lease = nil // expired
	}

	// 7. Standard auction.
	result := m.standardAuction(bids, multiplier, now)
	m.lastAllocations = result
	return result
}

func (m *Market) standardAuction(bids []Bid, multiplier float64, now time.Time) map[string][]Allocation {
	sorted := make([]Bid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	available := map[string]float64{
		ResourceComputeRPM: computeRPMPerTick,
		ResourceMemorySlot: memorySlotPerTick,
		ResourcePowerLease: powerLeasePerTick,
	}

	results := make(map[string][]Allocation)
	leaseGranted := false

	for _, bid := range sorted {
		if bid.Value <= 0 || bid.Amount <= 0 {
			continue
		}
		if available[bid.Resource] <= 0 {
			continue
		}
		cost := bid.Value * multiplier
		if m.wallets[bid.AgentID] < cost {
			continue
		}

		m.wallets[bid.AgentID] -= cost
		m.totalTransactions++
		results[bid.Resource] = append(results[bid.Resource], Allocation{
			Resource: bid.Resource, Winner: bid.AgentID, Amount: bid.Amount, Cost: cost,
		})

		switch bid.Resource {
		case ResourcePowerLease:
			available[ResourcePowerLease] = 0
			available[ResourceComputeRPM] = 0
			m.lease = &PowerLease{AgentID: bid.AgentID, Start: now, Duration: time.Second, Cost: cost}
			leaseGranted = true
		case ResourceComputeRPM:
			allocated := bid.Amount
			if allocated > available[ResourceComputeRPM] {
				allocated = available[ResourceComputeRPM]
			}
			available[ResourceComputeRPM] -= allocated
		case ResourceMemorySlot:
			available[ResourceMemorySlot]--
		}
	}

	var totalRPM float64
	for _, a := range results[ResourceComputeRPM] {
		totalRPM += a.Amount
	}
	busy := totalRPM > busyRPMThreshold || leaseGranted || (m.lease != nil && now.Before(m.lease.end()))
	dt := now.Sub(m.lastTick).Seconds()
	if dt <= 0 {
		dt = 1.0
	}
	m.updateEnergy(busy, dt)

	return results
}

// updateEnergy applies §4.4 step 8: drain while busy, recharge while idle.
func (m *Market) updateEnergy(busy bool, dt float64) {
	if busy {
		drain := m.drainRateBase * dt
		if m.lease != nil {
			drain *= 3.0
		}
		m.energyLevel = clampUnit(m.energyLevel-drain, 0, 100)
	} else {
		m.energyLevel = clampUnit(m.energyLevel+m.rechargeRate*dt, 0, 100)
	}
}

// LeaseActive reports whether a power lease is currently held, and by whom.
func (m *Market) LeaseActive() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lease == nil {
		return "", false
	}
	return m.lease.AgentID, true
}

// GetStatus returns a BrainSnapshot-shaped status map.
func (m *Market) GetStatus() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := map[string]any{
		"energy_level":       m.energyLevel,
		"wallets":            len(m.wallets),
		"total_transactions": m.totalTransactions,
		"lease_active":       m.lease != nil,
	}
	return status
}
