// Package network holds the authoring-side model of a discrete Bayesian
// network: the variable catalog, the parent/child graph and the conditional
// probability tables. Everything is owned by index; a VariableID is the
// position of a variable in creation order.
package network

import (
	"sync"

	"gonum.org/v1/gonum/graph/simple"
)

// DefaultEpsilon is the tolerance applied when checking that a CPT row sums to 1.
const DefaultEpsilon = 1e-6

// VariableID identifies a variable within one Network.
type VariableID int

// Options configures a Network
type Options struct {
	Name    string
	Epsilon float64 // row normalization tolerance; DefaultEpsilon when zero
	// Equation applies to equations loaded by FromDefinition that carry no
	// options of their own.
	Equation EquationOptions
}

// Network owns variables, edges and CPTs. It is safe for concurrent use;
// mutations are serialized.
type Network struct {
	mu      sync.RWMutex
	name    string
	epsilon float64
	version uint64

	vars     []Variable
	byName   map[string]VariableID
	parents  [][]VariableID // canonical parent order: order edges were added
	children [][]VariableID
	cpts     []*table
	eqs      []string // source of equation-derived CPTs, "" for literal tables
	eqOpts   []EquationOptions

	// dag mirrors the parent links for reachability queries; node ids are
	// VariableIDs.
	dag *simple.DirectedGraph
}

// New creates an empty network.
func New(opts Options) *Network {
	eps := opts.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Network{
		name:    opts.Name,
		epsilon: eps,
		byName:  make(map[string]VariableID),
		dag:     simple.NewDirectedGraph(),
	}
}

// Name returns the network name.
func (n *Network) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

// Epsilon returns the normalization tolerance.
func (n *Network) Epsilon() float64 {
	return n.epsilon
}

// Version increases on every mutation. Compiled structures record the
// version they were built from so staleness can be detected.
func (n *Network) Version() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

// Len returns the number of variables.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vars)
}

func (n *Network) valid(id VariableID) bool {
	return id >= 0 && int(id) < len(n.vars)
}

func (n *Network) touch() {
	n.version++
}
