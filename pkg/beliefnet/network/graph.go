package network

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// AddEdge adds the directed link parent -> child. The new parent is appended
// to the child's canonical parent order. A CPT already set on the child no
// longer matches its parent set and is discarded.
func (n *Network) AddEdge(parent, child VariableID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.valid(parent) {
		return fmt.Errorf("parent id %d: %w", parent, internalerr.ErrNotFound)
	}
	if !n.valid(child) {
		return fmt.Errorf("child id %d: %w", child, internalerr.ErrNotFound)
	}
	if parent == child {
		return fmt.Errorf("%s -> %s: %w", n.vars[parent].Name, n.vars[child].Name, internalerr.ErrSelfLoop)
	}
	for _, p := range n.parents[child] {
		if p == parent {
			return fmt.Errorf("%s -> %s: %w", n.vars[parent].Name, n.vars[child].Name, internalerr.ErrDuplicateEdge)
		}
	}
	if n.reachable(child, parent) {
		return fmt.Errorf("%s -> %s: %w", n.vars[parent].Name, n.vars[child].Name, internalerr.ErrCycle)
	}

	n.parents[child] = append(n.parents[child], parent)
	n.children[parent] = append(n.children[parent], child)
	n.dag.SetEdge(n.dag.NewEdge(simple.Node(parent), simple.Node(child)))
	n.cpts[child] = nil
	n.eqs[child] = ""
	n.eqOpts[child] = EquationOptions{}
	n.touch()
	return nil
}

// AddEdgeByName adds an edge between two named variables.
func (n *Network) AddEdgeByName(parent, child string) error {
	p, err := n.Lookup(parent)
	if err != nil {
		return err
	}
	c, err := n.Lookup(child)
	if err != nil {
		return err
	}
	return n.AddEdge(p, c)
}

// reachable reports whether to can be reached from from along child links.
// Caller holds the lock.
func (n *Network) reachable(from, to VariableID) bool {
	return topo.PathExistsIn(n.dag, simple.Node(from), simple.Node(to))
}

// Parents returns the canonical parent order of a variable.
func (n *Network) Parents(id VariableID) ([]VariableID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.valid(id) {
		return nil, fmt.Errorf("variable id %d: %w", id, internalerr.ErrNotFound)
	}
	return append([]VariableID(nil), n.parents[id]...), nil
}

// Children returns the children of a variable in the order links were added.
func (n *Network) Children(id VariableID) ([]VariableID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.valid(id) {
		return nil, fmt.Errorf("variable id %d: %w", id, internalerr.ErrNotFound)
	}
	return append([]VariableID(nil), n.children[id]...), nil
}

// TopologicalOrder returns all variables so that every parent precedes its
// children. Among variables that are ready at the same time the one created
// first wins, which makes the order deterministic.
func (n *Network) TopologicalOrder() []VariableID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.topologicalOrder()
}

// topologicalOrder is Kahn's algorithm with a ready set kept sorted by id.
func (n *Network) topologicalOrder() []VariableID {
	inDegree := make([]int, len(n.vars))
	for i := range n.vars {
		inDegree[i] = len(n.parents[i])
	}

	var ready []VariableID
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, VariableID(i))
		}
	}

	order := make([]VariableID, 0, len(n.vars))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)

		for _, c := range n.children[cur] {
			inDegree[c]--
			if inDegree[c] == 0 {
				pos := sort.Search(len(ready), func(i int) bool { return ready[i] > c })
				ready = append(ready, 0)
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = c
			}
		}
	}
	return order
}
