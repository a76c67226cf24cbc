package network

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// Variable is a discrete random variable. Values returned by the Network are
// copies; the catalog itself is append-only.
type Variable struct {
	ID     VariableID
	Name   string
	Title  string
	States []string
}

// Arity returns the number of states.
func (v Variable) Arity() int {
	return len(v.States)
}

// StateIndex returns the position of label in the variable's state list.
func (v Variable) StateIndex(label string) (int, bool) {
	for i, s := range v.States {
		if s == label {
			return i, true
		}
	}
	return -1, false
}

func (v Variable) clone() Variable {
	v.States = append([]string(nil), v.States...)
	return v
}

// CreateVariable registers a new variable with its ordered state labels.
func (n *Network) CreateVariable(name string, states []string, title string) (VariableID, error) {
	if name == "" {
		return -1, fmt.Errorf("variable name: %w", internalerr.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(states))
	dup := ""
	for _, s := range states {
		if s == "" {
			return -1, fmt.Errorf("variable %q: empty state label: %w", name, internalerr.ErrInvalidInput)
		}
		if _, ok := seen[s]; ok && dup == "" {
			dup = s
		}
		seen[s] = struct{}{}
	}
	if len(seen) < 2 {
		return -1, fmt.Errorf("variable %q has %d distinct states: %w", name, len(seen), internalerr.ErrInvalidArity)
	}
	if dup != "" {
		return -1, fmt.Errorf("variable %q: state %q: %w", name, dup, internalerr.ErrDuplicateName)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.byName[name]; exists {
		return -1, fmt.Errorf("variable %q: %w", name, internalerr.ErrDuplicateName)
	}

	id := VariableID(len(n.vars))
	n.vars = append(n.vars, Variable{
		ID:     id,
		Name:   name,
		Title:  title,
		States: append([]string(nil), states...),
	})
	n.byName[name] = id
	n.parents = append(n.parents, nil)
	n.children = append(n.children, nil)
	n.cpts = append(n.cpts, nil)
	n.eqs = append(n.eqs, "")
	n.eqOpts = append(n.eqOpts, EquationOptions{})
	n.dag.AddNode(simple.Node(id))
	n.touch()

	return id, nil
}

// Lookup resolves a variable name.
func (n *Network) Lookup(name string) (VariableID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	id, ok := n.byName[name]
	if !ok {
		return -1, fmt.Errorf("variable %q: %w", name, internalerr.ErrNotFound)
	}
	return id, nil
}

// Variable returns a copy of the variable with the given id.
func (n *Network) Variable(id VariableID) (Variable, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.valid(id) {
		return Variable{}, fmt.Errorf("variable id %d: %w", id, internalerr.ErrNotFound)
	}
	return n.vars[id].clone(), nil
}

// Variables returns copies of all variables in creation order.
func (n *Network) Variables() []Variable {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Variable, len(n.vars))
	for i, v := range n.vars {
		out[i] = v.clone()
	}
	return out
}

// StateIndex resolves a state label of a variable.
func (n *Network) StateIndex(id VariableID, label string) (int, error) {
	v, err := n.Variable(id)
	if err != nil {
		return -1, err
	}
	idx, ok := v.StateIndex(label)
	if !ok {
		return -1, fmt.Errorf("variable %q state %q: %w", v.Name, label, internalerr.ErrUnknownState)
	}
	return idx, nil
}
