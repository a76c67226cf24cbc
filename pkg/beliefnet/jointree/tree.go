package jointree

import (
	"fmt"
	"sort"

	"github.com/cognicore/beliefnet/pkg/beliefnet/factor"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// connect joins the cliques with a maximum-weight spanning forest, weight
// being the number of shared variables. Only pairs that share something are
// candidates, so cliques of different components stay in different trees.
func (t *Tree) connect() {
	type pair struct {
		a, b int
		sep  []network.VariableID
	}
	var pairs []pair
	for i := range t.Cliques {
		for j := i + 1; j < len(t.Cliques); j++ {
			if sep := intersect(t.Cliques[i].Vars, t.Cliques[j].Vars); len(sep) > 0 {
				pairs = append(pairs, pair{a: i, b: j, sep: sep})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].sep) > len(pairs[j].sep)
	})

	parent := make([]int, len(t.Cliques))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for _, p := range pairs {
		ra, rb := find(p.a), find(p.b)
		if ra == rb {
			continue
		}
		parent[rb] = ra
		t.Separators = append(t.Separators, Separator{A: p.a, B: p.b, Vars: p.sep})
		t.Cliques[p.a].Neighbors = append(t.Cliques[p.a].Neighbors, p.b)
		t.Cliques[p.b].Neighbors = append(t.Cliques[p.b].Neighbors, p.a)
	}

	seen := make(map[int]bool)
	for i := range t.Cliques {
		sort.Ints(t.Cliques[i].Neighbors)
		if r := find(i); !seen[r] {
			seen[r] = true
			t.Roots = append(t.Roots, i)
		}
	}
}

// assign places every CPT in the smallest clique holding its family and
// builds the clique potentials.
func (t *Tree) assign(fz network.Frozen, maxTable int) error {
	card := cardinalities(fz)

	for _, c := range t.Cliques {
		size := 1
		for _, v := range c.Vars {
			size *= card[v]
			if maxTable > 0 && size > maxTable {
				return fmt.Errorf("clique %d over %d variables: %w", c.ID, len(c.Vars), internalerr.ErrModelTooLarge)
			}
		}
		vars := make([]int, len(c.Vars))
		cc := make([]int, len(c.Vars))
		for i, v := range c.Vars {
			vars[i] = int(v)
			cc[i] = card[v]
		}
		c.Potential = factor.New(vars, cc, 1)
	}

	for _, v := range fz.Order {
		cpt := fz.CPTs[v]
		family := append(append([]network.VariableID(nil), cpt.Parents...), v)
		sorted := append([]network.VariableID(nil), family...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		home := -1
		for _, c := range t.Cliques {
			if !subset(sorted, c.Vars) {
				continue
			}
			if home < 0 || smaller(c, t.Cliques[home]) {
				home = c.ID
			}
		}
		if home < 0 {
			return fmt.Errorf("no clique holds the family of %q", fz.Variables[v].Name)
		}

		f, err := cptFactor(cpt, family, card)
		if err != nil {
			return err
		}
		c := t.Cliques[home]
		if err := c.Potential.MultiplyIn(f); err != nil {
			return err
		}
		c.Families = append(c.Families, v)
		t.Home[v] = home
	}
	return nil
}

func smaller(a, b *Clique) bool {
	if len(a.Vars) != len(b.Vars) {
		return len(a.Vars) < len(b.Vars)
	}
	if a.Potential.Size() != b.Potential.Size() {
		return a.Potential.Size() < b.Potential.Size()
	}
	return a.ID < b.ID
}

// cptFactor lays a CPT out as a factor over (parents..., variable); the rows
// of the CPT are already in that row-major order.
func cptFactor(cpt network.CPT, family []network.VariableID, card []int) (*factor.Factor, error) {
	vars := make([]int, len(family))
	cc := make([]int, len(family))
	for i, v := range family {
		vars[i] = int(v)
		cc[i] = card[v]
	}
	values := make([]float64, 0, len(cpt.Rows)*card[cpt.Variable])
	for _, row := range cpt.Rows {
		values = append(values, row...)
	}
	return factor.FromTable(vars, cc, values)
}

// Separator returns the separator between two adjacent cliques.
func (t *Tree) Separator(a, b int) ([]network.VariableID, bool) {
	for _, s := range t.Separators {
		if (s.A == a && s.B == b) || (s.A == b && s.B == a) {
			return s.Vars, true
		}
	}
	return nil, false
}

// Verify checks the structural invariants of the tree: every family is held
// by its home clique, every variable appears in a clique, the cliques of each
// component form a tree and the running intersection property holds.
func (t *Tree) Verify() error {
	for v := range t.Variables {
		if t.Home[v] < 0 || t.Home[v] >= len(t.Cliques) || !t.Cliques[t.Home[v]].Contains(network.VariableID(v)) {
			return fmt.Errorf("variable %q has no home clique", t.Variables[v].Name)
		}
	}
	if len(t.Separators) != len(t.Cliques)-len(t.Roots) {
		return fmt.Errorf("%d separators for %d cliques in %d trees", len(t.Separators), len(t.Cliques), len(t.Roots))
	}

	// Running intersection: the cliques holding any variable form a
	// connected subtree.
	for v := range t.Variables {
		id := network.VariableID(v)
		var holders []int
		for _, c := range t.Cliques {
			if c.Contains(id) {
				holders = append(holders, c.ID)
			}
		}
		seen := map[int]bool{holders[0]: true}
		stack := []int{holders[0]}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range t.Cliques[cur].Neighbors {
				if !seen[nb] && t.Cliques[nb].Contains(id) {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		if len(seen) != len(holders) {
			return fmt.Errorf("running intersection violated for %q", t.Variables[v].Name)
		}
	}
	return nil
}
