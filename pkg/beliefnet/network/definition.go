package network

import (
	"fmt"
	"math"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// Definition is the serializable form of an uncompiled network. It is the
// YAML model format and the payload of stored snapshots.
type Definition struct {
	Name      string        `yaml:"name" json:"name" validate:"max=256"`
	Variables []VariableDef `yaml:"variables" json:"variables" validate:"required,min=1,dive"`
}

// VariableDef describes one variable: its states, its parents in canonical
// order and its distribution, given as a full table, as named rows or as an
// equation.
type VariableDef struct {
	Name            string           `yaml:"name" json:"name" validate:"required"`
	Title           string           `yaml:"title,omitempty" json:"title,omitempty"`
	States          []string         `yaml:"states" json:"states" validate:"required,min=2,dive,required"`
	Parents         []string         `yaml:"parents,omitempty" json:"parents,omitempty" validate:"dive,required"`
	Table           [][]float64      `yaml:"table,omitempty" json:"table,omitempty"`
	Rows            []RowDef         `yaml:"rows,omitempty" json:"rows,omitempty" validate:"dive"`
	Equation        string           `yaml:"equation,omitempty" json:"equation,omitempty"`
	EquationOptions *EquationOptions `yaml:"equation_options,omitempty" json:"equation_options,omitempty"`
}

// RowDef is one CPT row addressed by parent state labels.
type RowDef struct {
	When  []string  `yaml:"when,omitempty" json:"when,omitempty"`
	Probs []float64 `yaml:"probs" json:"probs" validate:"required,min=2"`
}

// FromDefinition builds a network from its definition. Variables are created
// in listed order, then edges, then distributions.
func FromDefinition(def Definition, opts Options) (*Network, error) {
	if opts.Name == "" {
		opts.Name = def.Name
	}
	n := New(opts)

	for _, vd := range def.Variables {
		if _, err := n.CreateVariable(vd.Name, vd.States, vd.Title); err != nil {
			return nil, err
		}
	}
	for _, vd := range def.Variables {
		for _, p := range vd.Parents {
			if err := n.AddEdgeByName(p, vd.Name); err != nil {
				return nil, err
			}
		}
	}
	for _, vd := range def.Variables {
		if err := n.applyDistribution(vd, opts.Equation); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (n *Network) applyDistribution(vd VariableDef, defaults EquationOptions) error {
	id, err := n.Lookup(vd.Name)
	if err != nil {
		return err
	}
	if vd.Table != nil && vd.Rows != nil {
		return fmt.Errorf("variable %q: both table and rows given: %w", vd.Name, internalerr.ErrInvalidInput)
	}

	if vd.Equation != "" {
		eo := defaults
		if vd.EquationOptions != nil {
			eo = *vd.EquationOptions
		}
		if err := n.SetEquation(id, vd.Equation, eo); err != nil {
			return err
		}
		if vd.Table != nil {
			return n.checkMatchesTable(id, vd.Table)
		}
		return nil
	}

	if vd.Table != nil {
		return n.SetTable(id, vd.Table)
	}
	for _, r := range vd.Rows {
		if err := n.SetRow(id, r.When, r.Probs...); err != nil {
			return err
		}
	}
	return nil
}

// checkMatchesTable verifies that an equation-derived CPT agrees with a table
// stored alongside the equation.
func (n *Network) checkMatchesTable(id VariableID, rows [][]float64) error {
	cpt, _ := n.CPT(id)
	if len(rows) != len(cpt.Rows) {
		return fmt.Errorf("variable id %d: stored table has %d rows, equation gives %d: %w",
			id, len(rows), len(cpt.Rows), internalerr.ErrRowCountMismatch)
	}
	for i := range rows {
		if len(rows[i]) != len(cpt.Rows[i]) {
			return fmt.Errorf("variable id %d row %d: %w", id, i, internalerr.ErrRowCountMismatch)
		}
		for j := range rows[i] {
			if math.Abs(rows[i][j]-cpt.Rows[i][j]) > n.epsilon {
				return fmt.Errorf("variable id %d row %d: stored table disagrees with equation: %w",
					id, i, internalerr.ErrInvalidInput)
			}
		}
	}
	return nil
}

// Definition exports the network. Complete CPTs are written as tables,
// partially specified ones as named rows; equation sources are kept next to
// the table they produced.
func (n *Network) Definition() Definition {
	n.mu.RLock()
	defer n.mu.RUnlock()

	def := Definition{Name: n.name, Variables: make([]VariableDef, len(n.vars))}
	for i, v := range n.vars {
		vd := VariableDef{
			Name:   v.Name,
			Title:  v.Title,
			States: append([]string(nil), v.States...),
		}
		for _, p := range n.parents[i] {
			vd.Parents = append(vd.Parents, n.vars[p].Name)
		}

		t := n.cpts[i]
		switch {
		case t.complete():
			vd.Table = make([][]float64, len(t.rows))
			for r, row := range t.rows {
				vd.Table[r] = append([]float64(nil), row...)
			}
			if n.eqs[i] != "" {
				vd.Equation = n.eqs[i]
				eo := n.eqOpts[i]
				vd.EquationOptions = &eo
			}
		case t != nil:
			cards, _ := n.parentCards(VariableID(i))
			for r, row := range t.rows {
				if row == nil {
					continue
				}
				states := RowStates(cards, r)
				when := make([]string, len(states))
				for k, s := range states {
					when[k] = n.vars[n.parents[i][k]].States[s]
				}
				vd.Rows = append(vd.Rows, RowDef{When: when, Probs: append([]float64(nil), row...)})
			}
		}
		def.Variables[i] = vd
	}
	return def
}
