package coherence

// Default thresholds applied when no policy override is configured.
const (
	DefaultMaxIncoherence         = 0.1
	DefaultMinSelfModeling        = 0.8
	DefaultMinMemoryIntegrity     = 0.85
	DefaultMinDomainStabilization = 0.7
)

// Policy bounds a readiness evaluation. RequiredDomains is ordered;
// evaluation walks it front to back.
type Policy struct {
	MaxIncoherence         float64
	MinSelfModeling        float64
	MinMemoryIntegrity     float64
	MinDomainStabilization float64
	RequiredDomains        []string
}

// DefaultPolicy returns the stock thresholds and core domain set.
func DefaultPolicy() Policy {
	return Policy{
		MaxIncoherence:         DefaultMaxIncoherence,
		MinSelfModeling:        DefaultMinSelfModeling,
		MinMemoryIntegrity:     DefaultMinMemoryIntegrity,
		MinDomainStabilization: DefaultMinDomainStabilization,
		RequiredDomains:        []string{"time", "biology", "mind", "learning"},
	}
}

// Check identifies which threshold a failure refers to.
type Check string

const (
	CheckIncoherence         Check = "incoherence"
	CheckSelfModeling        Check = "self_modeling"
	CheckMemoryIntegrity     Check = "memory_integrity"
	CheckDomainStabilization Check = "domain_stabilization"
)

// CheckFailure records one threshold the current snapshot does not meet.
// Domain is set only for domain stabilization failures.
type CheckFailure struct {
	Check    Check
	Domain   string
	Observed float64
	Bound    float64
}

// Verdict is the explanatory form of an evaluation. Ready agrees with
// Tracker.Evaluate for the same snapshot and policy.
type Verdict struct {
	Ready    bool
	Failures []CheckFailure
}
