// Package jointree compiles a network into a tree of cliques for exact
// inference: moralize, triangulate by greedy elimination, keep the maximal
// elimination cliques, join them with a maximum-weight spanning tree and
// multiply every CPT into the smallest clique that holds its family.
//
// Compilation is exponential in the largest clique. That is inherent to exact
// inference; Options.MaxTableSize turns an oversized clique into an error
// instead of an allocation.
package jointree

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cognicore/beliefnet/pkg/beliefnet/factor"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// Heuristic picks the next variable to eliminate.
type Heuristic string

const (
	MinFill   Heuristic = "min-fill"
	MinDegree Heuristic = "min-degree"
)

// Disconnected selects how a moral graph with several components is handled.
type Disconnected string

const (
	// Reject fails with ErrDisconnectedModel.
	Reject Disconnected = "reject"
	// Forest builds one tree per component.
	Forest Disconnected = "forest"
)

// Options configures compilation
type Options struct {
	Heuristic    Heuristic
	Disconnected Disconnected
	MaxTableSize int // 0 means unlimited
	Logger       logrus.FieldLogger
}

// Clique is a node of the join tree.
type Clique struct {
	ID        int
	Vars      []network.VariableID // ascending
	Neighbors []int                // ascending
	Families  []network.VariableID // variables whose CPT was multiplied in here
	Potential *factor.Factor       // product of assigned CPTs, never mutated after compile
}

// Contains reports whether v is a member of the clique.
func (c *Clique) Contains(v network.VariableID) bool {
	i := sort.Search(len(c.Vars), func(i int) bool { return c.Vars[i] >= v })
	return i < len(c.Vars) && c.Vars[i] == v
}

// Separator is a tree edge between two cliques.
type Separator struct {
	A, B int
	Vars []network.VariableID
}

// Tree is the compiled, read-only inference structure of a network.
type Tree struct {
	Version    uint64 // network version it was compiled from
	Variables  []network.Variable
	Cliques    []*Clique
	Separators []Separator
	Roots      []int // one root clique per connected component
	Home       []int // home clique of each variable, indexed by VariableID
	Order      []network.VariableID
	FillIns    [][2]network.VariableID
}

// Stats summarizes the size of a compiled tree.
type Stats struct {
	Cliques        int
	Components     int
	MaxCliqueSize  int
	MaxTableSize   int
	TotalTableSize int
	FillIns        int
}

// Stats reports clique counts and table sizes.
func (t *Tree) Stats() Stats {
	s := Stats{
		Cliques:    len(t.Cliques),
		Components: len(t.Roots),
		FillIns:    len(t.FillIns),
	}
	for _, c := range t.Cliques {
		if len(c.Vars) > s.MaxCliqueSize {
			s.MaxCliqueSize = len(c.Vars)
		}
		size := c.Potential.Size()
		if size > s.MaxTableSize {
			s.MaxTableSize = size
		}
		s.TotalTableSize += size
	}
	return s
}

// Compile builds the join tree of a complete network.
func Compile(net *network.Network, opts Options) (*Tree, error) {
	fz, err := net.Freeze()
	if err != nil {
		return nil, err
	}
	return CompileFrozen(fz, opts)
}

// CompileFrozen builds the join tree from a frozen copy of a network.
func CompileFrozen(fz network.Frozen, opts Options) (*Tree, error) {
	if opts.Heuristic == "" {
		opts.Heuristic = MinFill
	}
	if opts.Disconnected == "" {
		opts.Disconnected = Reject
	}
	if opts.Heuristic != MinFill && opts.Heuristic != MinDegree {
		return nil, fmt.Errorf("elimination heuristic %q: %w", opts.Heuristic, internalerr.ErrInvalidConfig)
	}
	if opts.Disconnected != Reject && opts.Disconnected != Forest {
		return nil, fmt.Errorf("disconnected policy %q: %w", opts.Disconnected, internalerr.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	moral := moralize(fz)
	if comps := components(moral); comps > 1 && opts.Disconnected == Reject {
		return nil, fmt.Errorf("%d components: %w", comps, internalerr.ErrDisconnectedModel)
	}

	elim := eliminate(moral, cardinalities(fz), opts.Heuristic)
	sets := maximal(elim.cliques)

	t := &Tree{
		Version:   fz.Version,
		Variables: fz.Variables,
		Order:     elim.order,
		FillIns:   elim.fillIns,
		Home:      make([]int, len(fz.Variables)),
	}
	for i, vars := range sets {
		t.Cliques = append(t.Cliques, &Clique{ID: i, Vars: vars})
	}
	t.connect()

	if err := t.assign(fz, opts.MaxTableSize); err != nil {
		return nil, err
	}

	st := t.Stats()
	opts.Logger.WithFields(logrus.Fields{
		"cliques":          st.Cliques,
		"components":       st.Components,
		"max_clique_size":  st.MaxCliqueSize,
		"max_table_size":   st.MaxTableSize,
		"total_table_size": st.TotalTableSize,
		"fill_ins":         st.FillIns,
		"heuristic":        string(opts.Heuristic),
	}).Debug("compiled join tree")

	return t, nil
}

func cardinalities(fz network.Frozen) []int {
	card := make([]int, len(fz.Variables))
	for i, v := range fz.Variables {
		card[i] = len(v.States)
	}
	return card
}

// moralize links every variable to its parents and marries co-parents.
func moralize(fz network.Frozen) [][]bool {
	n := len(fz.Variables)
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	link := func(a, b network.VariableID) {
		if a != b {
			adj[a][b] = true
			adj[b][a] = true
		}
	}
	for _, cpt := range fz.CPTs {
		family := append(append([]network.VariableID(nil), cpt.Parents...), cpt.Variable)
		for i := range family {
			for j := i + 1; j < len(family); j++ {
				link(family[i], family[j])
			}
		}
	}
	return adj
}

// components counts connected components of an undirected graph.
func components(adj [][]bool) int {
	g := simple.NewUndirectedGraph()
	for v := range adj {
		g.AddNode(simple.Node(v))
	}
	for v, row := range adj {
		for u := v + 1; u < len(row); u++ {
			if row[u] {
				g.SetEdge(g.NewEdge(simple.Node(v), simple.Node(u)))
			}
		}
	}
	return len(topo.ConnectedComponents(g))
}

type elimination struct {
	order   []network.VariableID
	cliques [][]network.VariableID
	fillIns [][2]network.VariableID
}

// eliminate triangulates the moral graph greedily. Ties on the heuristic
// score go to the lower variable id, so the result depends only on the input.
func eliminate(moral [][]bool, card []int, h Heuristic) elimination {
	n := len(moral)
	adj := make([][]bool, n)
	for i := range moral {
		adj[i] = append([]bool(nil), moral[i]...)
	}
	done := make([]bool, n)
	var out elimination

	neighbors := func(v int) []int {
		var nb []int
		for u, ok := range adj[v] {
			if ok && !done[u] {
				nb = append(nb, u)
			}
		}
		return nb
	}
	fillCount := func(nb []int) int {
		fill := 0
		for i := range nb {
			for j := i + 1; j < len(nb); j++ {
				if !adj[nb[i]][nb[j]] {
					fill++
				}
			}
		}
		return fill
	}

	for step := 0; step < n; step++ {
		best, bestPrimary, bestSecondary := -1, 0, 0
		for v := 0; v < n; v++ {
			if done[v] {
				continue
			}
			nb := neighbors(v)
			fill, weight := fillCount(nb), card[v]
			for _, u := range nb {
				weight *= card[u]
			}
			primary, secondary := fill, weight
			if h == MinDegree {
				primary, secondary = len(nb), fill
			}
			if best < 0 || primary < bestPrimary || (primary == bestPrimary && secondary < bestSecondary) {
				best, bestPrimary, bestSecondary = v, primary, secondary
			}
		}

		nb := neighbors(best)
		for i := range nb {
			for j := i + 1; j < len(nb); j++ {
				a, b := nb[i], nb[j]
				if !adj[a][b] {
					adj[a][b], adj[b][a] = true, true
					out.fillIns = append(out.fillIns, [2]network.VariableID{network.VariableID(a), network.VariableID(b)})
				}
			}
		}

		clique := make([]network.VariableID, 0, len(nb)+1)
		clique = append(clique, network.VariableID(best))
		for _, u := range nb {
			clique = append(clique, network.VariableID(u))
		}
		sort.Slice(clique, func(i, j int) bool { return clique[i] < clique[j] })

		out.order = append(out.order, network.VariableID(best))
		out.cliques = append(out.cliques, clique)
		done[best] = true
	}
	return out
}

// maximal drops elimination cliques contained in another one, keeping
// elimination order.
func maximal(cliques [][]network.VariableID) [][]network.VariableID {
	var out [][]network.VariableID
	for i, c := range cliques {
		contained := false
		for j, d := range cliques {
			if i != j && len(c) < len(d) && subset(c, d) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, c)
		}
	}
	return out
}

// subset reports whether sorted a is contained in sorted b.
func subset(a, b []network.VariableID) bool {
	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}
		if j == len(b) || b[j] != x {
			return false
		}
		j++
	}
	return true
}

// intersect returns the sorted intersection of two sorted sets.
func intersect(a, b []network.VariableID) []network.VariableID {
	var out []network.VariableID
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
