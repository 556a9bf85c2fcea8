package coherence

import "sync"

// Snapshot is the latest set of externally computed coherence metrics.
// Incoherence starts at 1.0 (fully incoherent); the scores start at 0.
// Values are stored as injected: no clamping, no range validation.
type Snapshot struct {
	Incoherence     float64
	SelfModeling    float64
	MemoryIntegrity float64
	Domains         map[string]float64
}

// Tracker holds the current snapshot and answers readiness queries
// against a threshold policy. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	history *history
}

// NewTracker returns a tracker at the initial snapshot.
func NewTracker() *Tracker {
	return &Tracker{
		snap: Snapshot{
			Incoherence: 1.0,
			Domains:     make(map[string]float64),
		},
		history: newHistory(incoherenceWindowSize),
	}
}

// Update replaces the three scalar metrics and merges domainUpdates
// into the domain map. Domains absent from domainUpdates keep their
// prior value. Update never fails; values are assigned as given.
func (t *Tracker) Update(incoherence, selfModeling, memoryIntegrity float64, domainUpdates map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Incoherence = incoherence
	t.snap.SelfModeling = selfModeling
	t.snap.MemoryIntegrity = memoryIntegrity
	for domain, value := range domainUpdates {
		t.snap.Domains[domain] = value
	}

	t.history.push(incoherence)
}

// Evaluate reports whether the current snapshot satisfies the policy.
// Checks run in order and short-circuit on the first failure. A domain
// missing from the snapshot counts as stabilization 0.
func (t *Tracker) Evaluate(p Policy) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.snap.Incoherence > p.MaxIncoherence {
		return false
	}
	if t.snap.SelfModeling < p.MinSelfModeling {
		return false
	}
	if t.snap.MemoryIntegrity < p.MinMemoryIntegrity {
		return false
	}

	for _, domain := range p.RequiredDomains {
		if t.snap.Domains[domain] < p.MinDomainStabilization {
			return false
		}
	}

	return true
}

// Explain runs the same checks as Evaluate but collects every failure
// instead of short-circuiting. Failures appear in check order, domain
// failures in policy order.
func (t *Tracker) Explain(p Policy) Verdict {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var failures []CheckFailure

	if t.snap.Incoherence > p.MaxIncoherence {
		failures = append(failures, CheckFailure{
			Check:    CheckIncoherence,
			Observed: t.snap.Incoherence,
			Bound:    p.MaxIncoherence,
		})
	}
	if t.snap.SelfModeling < p.MinSelfModeling {
		failures = append(failures, CheckFailure{
			Check:    CheckSelfModeling,
			Observed: t.snap.SelfModeling,
			Bound:    p.MinSelfModeling,
		})
	}
	if t.snap.MemoryIntegrity < p.MinMemoryIntegrity {
		failures = append(failures, CheckFailure{
			Check:    CheckMemoryIntegrity,
			Observed: t.snap.MemoryIntegrity,
			Bound:    p.MinMemoryIntegrity,
		})
	}

	for _, domain := range p.RequiredDomains {
		if value := t.snap.Domains[domain]; value < p.MinDomainStabilization {
			failures = append(failures, CheckFailure{
				Check:    CheckDomainStabilization,
				Domain:   domain,
				Observed: value,
				Bound:    p.MinDomainStabilization,
			})
		}
	}

	return Verdict{
		Ready:    len(failures) == 0,
		Failures: failures,
	}
}

// Snapshot returns a copy of the current snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	domains := make(map[string]float64, len(t.snap.Domains))
	for domain, value := range t.snap.Domains {
		domains[domain] = value
	}

	return Snapshot{
		Incoherence:     t.snap.Incoherence,
		SelfModeling:    t.snap.SelfModeling,
		MemoryIntegrity: t.snap.MemoryIntegrity,
		Domains:         domains,
	}
}

// AverageIncoherence returns the rolling average over the last
// incoherenceWindowSize updates, or the initial 1.0 before any update.
// Logging and telemetry only; evaluation never consults it.
func (t *Tracker) AverageIncoherence() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.history.empty() {
		return t.snap.Incoherence
	}

	return t.history.average()
}
