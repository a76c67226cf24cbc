package network

import (
	"fmt"

	"github.com/cognicore/beliefnet/pkg/beliefnet/equation"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// EquationOptions controls how an equation is turned into a table.
type EquationOptions = equation.Options

// SetEquation compiles a logical definition of the variable over its current
// parents into a CPT and stores it. The source is retained for Definition.
func (n *Network) SetEquation(id VariableID, src string, opts EquationOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.valid(id) {
		return fmt.Errorf("variable id %d: %w", id, internalerr.ErrNotFound)
	}

	target := equation.Domain{Name: n.vars[id].Name, States: n.vars[id].States}
	parents := make([]equation.Domain, len(n.parents[id]))
	for i, p := range n.parents[id] {
		parents[i] = equation.Domain{Name: n.vars[p].Name, States: n.vars[p].States}
	}

	rows, err := equation.Compile(target, parents, src, opts)
	if err != nil {
		return err
	}
	if err := n.setTable(id, rows); err != nil {
		return err
	}
	n.eqs[id] = src
	n.eqOpts[id] = opts
	return nil
}

// Equation returns the equation a variable's CPT was derived from, if any.
func (n *Network) Equation(id VariableID) (string, EquationOptions, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.valid(id) || n.eqs[id] == "" {
		return "", EquationOptions{}, false
	}
	return n.eqs[id], n.eqOpts[id], true
}
