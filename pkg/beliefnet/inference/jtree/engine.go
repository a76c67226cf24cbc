package jtree

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/beliefnet/pkg/beliefnet/factor"
	"github.com/cognicore/beliefnet/pkg/beliefnet/inference"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/jointree"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// State of the engine's belief tables.
type State int

const (
	// Uncalibrated: evidence changed (or nothing was computed yet) since the
	// last message pass.
	Uncalibrated State = iota
	// Calibrated: all clique beliefs agree with each other and the evidence.
	Calibrated
)

func (s State) String() string {
	if s == Calibrated {
		return "calibrated"
	}
	return "uncalibrated"
}

// Options configures an Engine
type Options struct {
	Logger logrus.FieldLogger
	// OnCalibrate, when set, is called after every message pass with its duration.
	OnCalibrate func(time.Duration)
}

type edge struct{ from, to int }

// Engine runs Shafer-Shenoy message passing over a join tree. Each clique
// keeps its compiled potential untouched; evidence is applied to a working
// copy, so retracting a finding never requires recompilation.
//
// Evidence changes take the write lock. Belief queries share a read lock once
// the tree is calibrated and take the write lock to calibrate lazily.
type Engine struct {
	mu sync.RWMutex

	tree   *jointree.Tree
	byName map[string]network.VariableID
	seps   map[edge][]int

	evidence map[network.VariableID]int
	work     []*factor.Factor
	beliefs  []*factor.Factor
	mass     []float64 // per component, P(evidence restricted to it)
	state    State

	log         logrus.FieldLogger
	onCalibrate func(time.Duration)
}

var _ inference.Engine = (*Engine)(nil)

// New creates an uncalibrated engine over a compiled tree.
func New(tree *jointree.Tree, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	e := &Engine{
		tree:        tree,
		byName:      make(map[string]network.VariableID, len(tree.Variables)),
		seps:        make(map[edge][]int, 2*len(tree.Separators)),
		evidence:    make(map[network.VariableID]int),
		work:        make([]*factor.Factor, len(tree.Cliques)),
		beliefs:     make([]*factor.Factor, len(tree.Cliques)),
		mass:        make([]float64, len(tree.Roots)),
		log:         opts.Logger,
		onCalibrate: opts.OnCalibrate,
	}
	for _, v := range tree.Variables {
		e.byName[v.Name] = v.ID
	}
	for _, s := range tree.Separators {
		vars := make([]int, len(s.Vars))
		for i, v := range s.Vars {
			vars[i] = int(v)
		}
		e.seps[edge{s.A, s.B}] = vars
		e.seps[edge{s.B, s.A}] = vars
	}
	for i, c := range tree.Cliques {
		e.work[i] = c.Potential.Clone()
	}
	return e
}

// Tree returns the join tree the engine runs on.
func (e *Engine) Tree() *jointree.Tree {
	return e.tree
}

// State reports whether the beliefs are current.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) lookup(name string) (network.Variable, error) {
	id, ok := e.byName[name]
	if !ok {
		return network.Variable{}, fmt.Errorf("variable %q: %w", name, internalerr.ErrNotFound)
	}
	return e.tree.Variables[id], nil
}

// EnterEvidence fixes variable to state.
func (e *Engine) EnterEvidence(variable, state string) error {
	v, err := e.lookup(variable)
	if err != nil {
		return err
	}
	s, ok := v.StateIndex(state)
	if !ok {
		return fmt.Errorf("variable %q state %q: %w", variable, state, internalerr.ErrUnknownState)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.evidence[v.ID] = s
	e.refresh(v.ID)
	return nil
}

// RetractEvidence removes the finding on variable. Retracting a variable
// without a finding is a no-op.
func (e *Engine) RetractEvidence(variable string) error {
	v, err := e.lookup(variable)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.evidence[v.ID]; !ok {
		return nil
	}
	delete(e.evidence, v.ID)
	e.refresh(v.ID)
	return nil
}

// RetractAll removes every finding.
func (e *Engine) RetractAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.evidence) == 0 {
		return
	}
	e.evidence = make(map[network.VariableID]int)
	for i, c := range e.tree.Cliques {
		e.work[i] = c.Potential.Clone()
	}
	e.state = Uncalibrated
}

// Evidence returns the current findings.
func (e *Engine) Evidence() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]string, len(e.evidence))
	for id, s := range e.evidence {
		v := e.tree.Variables[id]
		out[v.Name] = v.States[s]
	}
	return out
}

// refresh rebuilds the working potential of every clique holding v from its
// compiled potential and the findings that apply to it. Caller holds the
// write lock.
func (e *Engine) refresh(v network.VariableID) {
	for i, c := range e.tree.Cliques {
		if !c.Contains(v) {
			continue
		}
		w := c.Potential.Clone()
		for ev, s := range e.evidence {
			w.Observe(int(ev), s)
		}
		e.work[i] = w
	}
	e.state = Uncalibrated
}
