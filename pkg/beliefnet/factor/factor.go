// Package factor implements dense potential tables over discrete variables.
//
// A Factor's Values are laid out row-major over Vars: the last variable
// varies fastest. Variables are plain ints so the package has no dependency
// on the network model.
package factor

import (
	"fmt"
)

// Factor is a non-negative table over a set of variables.
type Factor struct {
	Vars   []int
	Card   []int
	Values []float64
}

// New returns a factor with every entry set to fill.
func New(vars, card []int, fill float64) *Factor {
	size := 1
	for _, c := range card {
		size *= c
	}
	values := make([]float64, size)
	if fill != 0 {
		for i := range values {
			values[i] = fill
		}
	}
	return &Factor{
		Vars:   append([]int(nil), vars...),
		Card:   append([]int(nil), card...),
		Values: values,
	}
}

// FromTable wraps existing values. len(values) must equal the product of card.
func FromTable(vars, card []int, values []float64) (*Factor, error) {
	f := New(vars, card, 0)
	if len(values) != len(f.Values) {
		return nil, fmt.Errorf("factor over %v: got %d values, want %d", vars, len(values), len(f.Values))
	}
	copy(f.Values, values)
	return f, nil
}

// Size is the number of entries.
func (f *Factor) Size() int {
	return len(f.Values)
}

// Clone returns a deep copy.
func (f *Factor) Clone() *Factor {
	return &Factor{
		Vars:   append([]int(nil), f.Vars...),
		Card:   append([]int(nil), f.Card...),
		Values: append([]float64(nil), f.Values...),
	}
}

// Index returns the position of v in Vars, or -1.
func (f *Factor) Index(v int) int {
	for i, x := range f.Vars {
		if x == v {
			return i
		}
	}
	return -1
}

// Sum returns the total mass.
func (f *Factor) Sum() float64 {
	s := 0.0
	for _, v := range f.Values {
		s += v
	}
	return s
}

// strides of f's variables as seen from a factor laid out over vars; zero
// for variables f does not contain.
func (f *Factor) stridesIn(vars []int) []int {
	own := make([]int, len(f.Vars))
	s := 1
	for i := len(f.Vars) - 1; i >= 0; i-- {
		own[i] = s
		s *= f.Card[i]
	}
	out := make([]int, len(vars))
	for i, v := range vars {
		if k := f.Index(v); k >= 0 {
			out[i] = own[k]
		}
	}
	return out
}

// walk visits every entry of a table over (vars, card) in row-major order,
// passing the entry's position and the matching position in each of the
// given sub-factors.
func walk(card []int, strides [][]int, visit func(i int, sub []int)) {
	size := 1
	for _, c := range card {
		size *= c
	}
	assign := make([]int, len(card))
	sub := make([]int, len(strides))
	for i := 0; i < size; i++ {
		visit(i, sub)
		for k := len(card) - 1; k >= 0; k-- {
			assign[k]++
			for j := range strides {
				sub[j] += strides[j][k]
			}
			if assign[k] < card[k] {
				break
			}
			for j := range strides {
				sub[j] -= strides[j][k] * card[k]
			}
			assign[k] = 0
		}
	}
}

func (f *Factor) covers(g *Factor) error {
	for i, v := range g.Vars {
		k := f.Index(v)
		if k < 0 {
			return fmt.Errorf("variable %d not in factor %v", v, f.Vars)
		}
		if f.Card[k] != g.Card[i] {
			return fmt.Errorf("variable %d: cardinality %d vs %d", v, f.Card[k], g.Card[i])
		}
	}
	return nil
}

// MultiplyIn multiplies g into f in place. g's variables must be a subset
// of f's.
func (f *Factor) MultiplyIn(g *Factor) error {
	if err := f.covers(g); err != nil {
		return err
	}
	st := g.stridesIn(f.Vars)
	walk(f.Card, [][]int{st}, func(i int, sub []int) {
		f.Values[i] *= g.Values[sub[0]]
	})
	return nil
}

// Marginal sums f onto vars, which must be a subset of f's variables. The
// result is laid out in the order of vars.
func (f *Factor) Marginal(vars []int) (*Factor, error) {
	card := make([]int, len(vars))
	for i, v := range vars {
		k := f.Index(v)
		if k < 0 {
			return nil, fmt.Errorf("variable %d not in factor %v", v, f.Vars)
		}
		card[i] = f.Card[k]
	}
	out := New(vars, card, 0)
	st := out.stridesIn(f.Vars)
	walk(f.Card, [][]int{st}, func(i int, sub []int) {
		out.Values[sub[0]] += f.Values[i]
	})
	return out, nil
}

// Observe zeroes every entry where variable v is not in the given state.
// It is a no-op when v is not in f.
func (f *Factor) Observe(v, state int) {
	k := f.Index(v)
	if k < 0 {
		return
	}
	stride := 1
	for i := len(f.Vars) - 1; i > k; i-- {
		stride *= f.Card[i]
	}
	for i := range f.Values {
		if (i/stride)%f.Card[k] != state {
			f.Values[i] = 0
		}
	}
}

// Normalize scales f to sum to 1 and returns the mass it had. A factor with
// zero mass is left untouched.
func (f *Factor) Normalize() float64 {
	s := f.Sum()
	if s == 0 {
		return 0
	}
	for i := range f.Values {
		f.Values[i] /= s
	}
	return s
}

// Equal reports whether two factors have the same layout and values within tol.
func Equal(a, b *Factor, tol float64) bool {
	if len(a.Vars) != len(b.Vars) || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Vars {
		if a.Vars[i] != b.Vars[i] || a.Card[i] != b.Card[i] {
			return false
		}
	}
	for i := range a.Values {
		d := a.Values[i] - b.Values[i]
		if d < -tol || d > tol {
			return false
		}
	}
	return true
}
