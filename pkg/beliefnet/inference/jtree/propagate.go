package jtree

import (
	"fmt"
	"time"

	"github.com/cognicore/beliefnet/pkg/beliefnet/factor"
	"github.com/cognicore/beliefnet/pkg/beliefnet/inference"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// calibrate runs collect then distribute from the root of every tree and
// recomputes all clique beliefs. Caller holds the write lock.
func (e *Engine) calibrate() error {
	start := time.Now()
	msgs := make(map[edge]*factor.Factor, len(e.seps))

	for _, root := range e.tree.Roots {
		if err := e.collect(root, -1, msgs); err != nil {
			return err
		}
		if err := e.distribute(root, -1, msgs); err != nil {
			return err
		}
	}

	for i, c := range e.tree.Cliques {
		b := e.work[i].Clone()
		for _, nb := range c.Neighbors {
			if err := b.MultiplyIn(msgs[edge{nb, i}]); err != nil {
				return fmt.Errorf("absorb message %d->%d: %w", nb, i, err)
			}
		}
		e.beliefs[i] = b
	}
	for ri, root := range e.tree.Roots {
		e.mass[ri] = e.beliefs[root].Sum()
	}
	e.state = Calibrated

	elapsed := time.Since(start)
	e.log.WithField("evidence", len(e.evidence)).WithField("elapsed", elapsed).Debug("calibrated join tree")
	if e.onCalibrate != nil {
		e.onCalibrate(elapsed)
	}
	return nil
}

// collect sends messages from the leaves towards c, then from c to parent.
func (e *Engine) collect(c, parent int, msgs map[edge]*factor.Factor) error {
	for _, nb := range e.tree.Cliques[c].Neighbors {
		if nb == parent {
			continue
		}
		if err := e.collect(nb, c, msgs); err != nil {
			return err
		}
	}
	if parent < 0 {
		return nil
	}
	m, err := e.message(c, parent, msgs)
	if err != nil {
		return err
	}
	msgs[edge{c, parent}] = m
	return nil
}

// distribute sends messages from c outwards to every neighbor but parent.
func (e *Engine) distribute(c, parent int, msgs map[edge]*factor.Factor) error {
	for _, nb := range e.tree.Cliques[c].Neighbors {
		if nb == parent {
			continue
		}
		m, err := e.message(c, nb, msgs)
		if err != nil {
			return err
		}
		msgs[edge{c, nb}] = m
		if err := e.distribute(nb, c, msgs); err != nil {
			return err
		}
	}
	return nil
}

// message is the working potential of from times every message it received
// from neighbors other than to, summed onto their separator.
func (e *Engine) message(from, to int, msgs map[edge]*factor.Factor) (*factor.Factor, error) {
	f := e.work[from].Clone()
	for _, nb := range e.tree.Cliques[from].Neighbors {
		if nb == to {
			continue
		}
		if err := f.MultiplyIn(msgs[edge{nb, from}]); err != nil {
			return nil, fmt.Errorf("message %d->%d: %w", from, to, err)
		}
	}
	m, err := f.Marginal(e.seps[edge{from, to}])
	if err != nil {
		return nil, fmt.Errorf("message %d->%d: %w", from, to, err)
	}
	return m, nil
}

// read runs fn against calibrated beliefs, calibrating first if needed.
func (e *Engine) read(fn func() error) error {
	e.mu.RLock()
	if e.state == Calibrated {
		defer e.mu.RUnlock()
		return fn()
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Calibrated {
		if err := e.calibrate(); err != nil {
			return err
		}
	}
	return fn()
}

// checkMass fails when the evidence is impossible in any component.
func (e *Engine) checkMass() error {
	for _, m := range e.mass {
		if m == 0 {
			return fmt.Errorf("%d findings: %w", len(e.evidence), internalerr.ErrZeroProbabilityEvidence)
		}
	}
	return nil
}

// Belief returns the posterior distribution of variable.
func (e *Engine) Belief(variable string) ([]inference.StateBelief, error) {
	v, err := e.lookup(variable)
	if err != nil {
		return nil, err
	}

	var out []inference.StateBelief
	err = e.read(func() error {
		if err := e.checkMass(); err != nil {
			return err
		}
		home := e.tree.Home[v.ID]
		m, err := e.beliefs[home].Marginal([]int{int(v.ID)})
		if err != nil {
			return err
		}
		if m.Normalize() == 0 {
			return fmt.Errorf("variable %q: %w", variable, internalerr.ErrZeroProbabilityEvidence)
		}
		out = make([]inference.StateBelief, len(v.States))
		for i, s := range v.States {
			out[i] = inference.StateBelief{State: s, Probability: m.Values[i]}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BeliefOf returns the posterior probability of one state.
func (e *Engine) BeliefOf(variable, state string) (float64, error) {
	v, err := e.lookup(variable)
	if err != nil {
		return 0, err
	}
	idx, ok := v.StateIndex(state)
	if !ok {
		return 0, fmt.Errorf("variable %q state %q: %w", variable, state, internalerr.ErrUnknownState)
	}
	b, err := e.Belief(variable)
	if err != nil {
		return 0, err
	}
	return b[idx].Probability, nil
}

// ProbabilityOfEvidence returns the prior probability of the current
// findings: the product of the unnormalized mass of every tree.
func (e *Engine) ProbabilityOfEvidence() (float64, error) {
	p := 1.0
	err := e.read(func() error {
		for _, m := range e.mass {
			p *= m
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return p, nil
}
