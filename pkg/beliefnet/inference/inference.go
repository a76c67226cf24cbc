package inference

// Engine answers belief queries over a compiled network.
// This interface allows swapping implementations (junction tree, brute-force
// enumeration for tests, etc.)
type Engine interface {
	// Belief returns the distribution over a variable's states given the
	// current evidence, in declared state order.
	Belief(variable string) ([]StateBelief, error)

	// BeliefOf returns the probability of one state given the current evidence.
	BeliefOf(variable, state string) (float64, error)

	// EnterEvidence fixes a variable to one state, replacing any earlier
	// finding on that variable.
	EnterEvidence(variable, state string) error

	// RetractEvidence removes the finding on a variable, if any.
	RetractEvidence(variable string) error

	// RetractAll removes every finding.
	RetractAll()

	// Evidence returns the current findings as variable -> state.
	Evidence() map[string]string

	// ProbabilityOfEvidence returns P(evidence) under the model; 1 when no
	// evidence is entered.
	ProbabilityOfEvidence() (float64, error)
}

// StateBelief is one entry of a belief distribution.
type StateBelief struct {
	State       string
	Probability float64
}

// Probabilities strips the labels from a belief.
func Probabilities(b []StateBelief) []float64 {
	out := make([]float64, len(b))
	for i, sb := range b {
		out[i] = sb.Probability
	}
	return out
}
