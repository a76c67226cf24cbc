// Package nettest builds random networks and answers queries on them by
// brute-force enumeration of the joint distribution. It is the reference the
// exact engines are tested against.
package nettest

import (
	"fmt"
	"math/rand"

	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// RandomNetwork builds a complete network with up to maxVars variables of
// 2 or 3 states. Edges only go from lower to higher ids, so the graph is
// acyclic; each variable gets at most maxParents parents.
func RandomNetwork(rng *rand.Rand, maxVars, maxParents int) (*network.Network, error) {
	n := network.New(network.Options{Name: "random"})
	count := 1 + rng.Intn(maxVars)

	for i := 0; i < count; i++ {
		states := []string{"s0", "s1"}
		if rng.Intn(3) == 0 {
			states = append(states, "s2")
		}
		if _, err := n.CreateVariable(fmt.Sprintf("V%d", i), states, ""); err != nil {
			return nil, err
		}
	}

	for child := 1; child < count; child++ {
		parents := 0
		for _, p := range rng.Perm(child) {
			if parents == maxParents {
				break
			}
			if rng.Float64() < 0.5 {
				if err := n.AddEdge(network.VariableID(p), network.VariableID(child)); err != nil {
					return nil, err
				}
				parents++
			}
		}
	}

	for i, v := range n.Variables() {
		parents, _ := n.Parents(network.VariableID(i))
		rows := 1
		for _, p := range parents {
			pv, _ := n.Variable(p)
			rows *= pv.Arity()
		}
		table := make([][]float64, rows)
		for r := range table {
			table[r] = randomRow(rng, v.Arity())
		}
		if err := n.SetTable(network.VariableID(i), table); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// randomRow draws a distribution, occasionally with hard zeros.
func randomRow(rng *rand.Rand, k int) []float64 {
	row := make([]float64, k)
	sum := 0.0
	for i := range row {
		if rng.Intn(8) == 0 {
			continue
		}
		row[i] = 0.05 + rng.Float64()
		sum += row[i]
	}
	if sum == 0 {
		row[rng.Intn(k)] = 1
		return row
	}
	for i := range row {
		row[i] /= sum
	}
	return row
}

// Joint enumerates every full assignment of a complete network with its
// probability. Evidence maps variable ids to observed state indexes;
// assignments that contradict it get probability zero.
func Joint(n *network.Network, evidence map[network.VariableID]int, visit func(assign []int, p float64)) error {
	fz, err := n.Freeze()
	if err != nil {
		return err
	}
	card := make([]int, len(fz.Variables))
	for i, v := range fz.Variables {
		card[i] = v.Arity()
	}

	assign := make([]int, len(card))
	for {
		p := 1.0
		for v, s := range evidence {
			if assign[v] != s {
				p = 0
			}
		}
		for i := 0; i < len(card) && p > 0; i++ {
			cpt := fz.CPTs[i]
			pc := make([]int, len(cpt.Parents))
			states := make([]int, len(cpt.Parents))
			for k, par := range cpt.Parents {
				pc[k] = card[par]
				states[k] = assign[par]
			}
			p *= cpt.Rows[network.RowIndex(pc, states)][assign[i]]
		}
		visit(assign, p)

		k := len(assign) - 1
		for ; k >= 0; k-- {
			assign[k]++
			if assign[k] < card[k] {
				break
			}
			assign[k] = 0
		}
		if k < 0 {
			return nil
		}
	}
}

// Posterior returns the normalized marginal of every variable given the
// evidence, and the probability of the evidence.
func Posterior(n *network.Network, evidence map[network.VariableID]int) ([][]float64, float64, error) {
	vars := n.Variables()
	out := make([][]float64, len(vars))
	for i, v := range vars {
		out[i] = make([]float64, v.Arity())
	}

	total := 0.0
	err := Joint(n, evidence, func(assign []int, p float64) {
		total += p
		for v, s := range assign {
			out[v][s] += p
		}
	})
	if err != nil {
		return nil, 0, err
	}
	if total > 0 {
		for _, m := range out {
			for s := range m {
				m[s] /= total
			}
		}
	}
	return out, total, nil
}
