package network

import (
	"fmt"
	"math"
	"strings"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// CPT is the conditional probability table of one variable. Rows[i] is the
// distribution over the variable's states for parent configuration i, where
// configurations are enumerated row-major over Parents: the last parent
// varies fastest and each parent's states follow their declared order.
type CPT struct {
	Variable VariableID
	Parents  []VariableID
	Rows     [][]float64
}

type table struct {
	rows   [][]float64 // nil entries are rows not yet specified
	filled int
}

func (t *table) complete() bool {
	return t != nil && t.filled == len(t.rows)
}

// RowIndex maps a parent configuration (state index per parent, canonical
// order) to its CPT row.
func RowIndex(cards, states []int) int {
	idx := 0
	for i, s := range states {
		idx = idx*cards[i] + s
	}
	return idx
}

// RowStates is the inverse of RowIndex.
func RowStates(cards []int, row int) []int {
	states := make([]int, len(cards))
	for i := len(cards) - 1; i >= 0; i-- {
		states[i] = row % cards[i]
		row /= cards[i]
	}
	return states
}

// parentCards returns the cardinality of each parent and the row count.
// Caller holds the lock.
func (n *Network) parentCards(id VariableID) ([]int, int) {
	cards := make([]int, len(n.parents[id]))
	rows := 1
	for i, p := range n.parents[id] {
		cards[i] = len(n.vars[p].States)
		rows *= cards[i]
	}
	return cards, rows
}

// SetTable replaces the CPT of a variable. rows must hold one distribution
// per parent configuration, in canonical order; a root variable takes exactly
// one row.
func (n *Network) SetTable(id VariableID, rows [][]float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.setTable(id, rows); err != nil {
		return err
	}
	n.eqs[id] = ""
	return nil
}

// setTable validates and stores a full table. Caller holds the lock.
func (n *Network) setTable(id VariableID, rows [][]float64) error {
	if !n.valid(id) {
		return fmt.Errorf("variable id %d: %w", id, internalerr.ErrNotFound)
	}
	v := n.vars[id]
	_, want := n.parentCards(id)
	if len(rows) != want {
		return fmt.Errorf("variable %q: got %d rows, want %d: %w", v.Name, len(rows), want, internalerr.ErrRowCountMismatch)
	}

	t := &table{rows: make([][]float64, len(rows)), filled: len(rows)}
	for i, row := range rows {
		if err := n.checkRow(v, i, row); err != nil {
			return err
		}
		t.rows[i] = append([]float64(nil), row...)
	}

	n.cpts[id] = t
	n.touch()
	return nil
}

// SetRow sets a single CPT row addressed by parent state labels given in
// canonical parent order. A root variable takes no labels. The CPT counts as
// specified once every row has been set.
func (n *Network) SetRow(id VariableID, parentStates []string, probs ...float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.valid(id) {
		return fmt.Errorf("variable id %d: %w", id, internalerr.ErrNotFound)
	}
	v := n.vars[id]
	parents := n.parents[id]
	if len(parentStates) != len(parents) {
		return fmt.Errorf("variable %q: got %d parent states, want %d: %w",
			v.Name, len(parentStates), len(parents), internalerr.ErrRowCountMismatch)
	}

	cards, total := n.parentCards(id)
	states := make([]int, len(parents))
	for i, label := range parentStates {
		idx, ok := n.vars[parents[i]].StateIndex(label)
		if !ok {
			return fmt.Errorf("variable %q parent %q state %q: %w",
				v.Name, n.vars[parents[i]].Name, label, internalerr.ErrUnknownState)
		}
		states[i] = idx
	}
	row := RowIndex(cards, states)
	if err := n.checkRow(v, row, probs); err != nil {
		return err
	}

	t := n.cpts[id]
	if t == nil || len(t.rows) != total {
		t = &table{rows: make([][]float64, total)}
		n.cpts[id] = t
	}
	n.eqs[id] = ""
	if t.rows[row] == nil {
		t.filled++
	}
	t.rows[row] = append([]float64(nil), probs...)
	n.touch()
	return nil
}

func (n *Network) checkRow(v Variable, idx int, row []float64) error {
	if len(row) != len(v.States) {
		return fmt.Errorf("variable %q row %d: got %d entries, want %d: %w",
			v.Name, idx, len(row), len(v.States), internalerr.ErrRowCountMismatch)
	}
	sum := 0.0
	for _, p := range row {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("variable %q row %d: value %v: %w", v.Name, idx, p, internalerr.ErrDomain)
		}
		sum += p
	}
	if math.Abs(sum-1) > n.epsilon {
		return fmt.Errorf("variable %q row %d sums to %v: %w", v.Name, idx, sum, internalerr.ErrNormalization)
	}
	return nil
}

// HasCPT reports whether every row of the variable's CPT has been specified.
func (n *Network) HasCPT(id VariableID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.valid(id) && n.cpts[id].complete()
}

// CPT returns a copy of a fully specified CPT.
func (n *Network) CPT(id VariableID) (CPT, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.valid(id) || !n.cpts[id].complete() {
		return CPT{}, false
	}
	t := n.cpts[id]
	rows := make([][]float64, len(t.rows))
	for i, r := range t.rows {
		rows[i] = append([]float64(nil), r...)
	}
	return CPT{
		Variable: id,
		Parents:  append([]VariableID(nil), n.parents[id]...),
		Rows:     rows,
	}, true
}

// Missing returns the names of variables without a fully specified CPT.
func (n *Network) Missing() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.missing()
}

func (n *Network) missing() []string {
	var out []string
	for i, v := range n.vars {
		if !n.cpts[i].complete() {
			out = append(out, v.Name)
		}
	}
	return out
}

// Validate checks that the network can be compiled: at least one variable and
// a complete CPT for each.
func (n *Network) Validate() error {
	_, err := n.Freeze()
	return err
}

// Frozen is a consistent, read-only copy of a complete network taken under a
// single lock. Compilers work from it so concurrent edits cannot tear the
// model they see.
type Frozen struct {
	Version   uint64
	Variables []Variable
	CPTs      []CPT
	Order     []VariableID // topological order
}

// Freeze copies the network for compilation. It fails with
// ErrIncompleteModel when the network is empty or a CPT is missing.
func (n *Network) Freeze() (Frozen, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.vars) == 0 {
		return Frozen{}, fmt.Errorf("network has no variables: %w", internalerr.ErrIncompleteModel)
	}
	if missing := n.missing(); len(missing) > 0 {
		return Frozen{}, fmt.Errorf("no CPT for %s: %w", strings.Join(missing, ", "), internalerr.ErrIncompleteModel)
	}

	fz := Frozen{
		Version:   n.version,
		Variables: make([]Variable, len(n.vars)),
		CPTs:      make([]CPT, len(n.vars)),
		Order:     n.topologicalOrder(),
	}
	for i, v := range n.vars {
		fz.Variables[i] = v.clone()
		rows := make([][]float64, len(n.cpts[i].rows))
		for r, row := range n.cpts[i].rows {
			rows[r] = append([]float64(nil), row...)
		}
		fz.CPTs[i] = CPT{
			Variable: VariableID(i),
			Parents:  append([]VariableID(nil), n.parents[i]...),
			Rows:     rows,
		}
	}
	return fz, nil
}
