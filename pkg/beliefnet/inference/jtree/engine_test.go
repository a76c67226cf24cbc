package jtree

import (
	"errors"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/beliefnet/internal/nettest"
	"github.com/cognicore/beliefnet/pkg/beliefnet/inference"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/jointree"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

// alarm is Burglary -> Alarm.
func alarm(t *testing.T, alarmRows [][]float64) *Engine {
	t.Helper()
	net := network.New(network.Options{Name: "alarm"})
	b, err := net.CreateVariable("Burglary", []string{"yes", "no"}, "")
	require.NoError(t, err)
	a, err := net.CreateVariable("Alarm", []string{"on", "off"}, "")
	require.NoError(t, err)
	require.NoError(t, net.AddEdge(b, a))
	require.NoError(t, net.SetTable(b, [][]float64{{0.3, 0.7}}))
	require.NoError(t, net.SetTable(a, alarmRows))

	tree, err := jointree.Compile(net, jointree.Options{})
	require.NoError(t, err)
	return New(tree, Options{})
}

func probs(t *testing.T, e *Engine, variable string) []float64 {
	t.Helper()
	b, err := e.Belief(variable)
	require.NoError(t, err)
	return inference.Probabilities(b)
}

func TestPriors(t *testing.T) {
	e := alarm(t, [][]float64{{0.9, 0.1}, {0.2, 0.8}})

	assert.InDeltaSlice(t, []float64{0.3, 0.7}, probs(t, e, "Burglary"), 1e-12)
	assert.InDeltaSlice(t, []float64{0.41, 0.59}, probs(t, e, "Alarm"), 1e-12)

	b, err := e.Belief("Alarm")
	require.NoError(t, err)
	assert.Equal(t, "on", b[0].State)
	assert.Equal(t, "off", b[1].State)

	p, err := e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-12)
}

func TestEvidence(t *testing.T) {
	e := alarm(t, [][]float64{{0.9, 0.1}, {0.2, 0.8}})

	require.NoError(t, e.EnterEvidence("Alarm", "on"))
	p, err := e.BeliefOf("Burglary", "yes")
	require.NoError(t, err)
	assert.InDelta(t, 0.27/0.41, p, 1e-12)

	p, err = e.BeliefOf("Alarm", "on")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p, 1e-12)

	pe, err := e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.InDelta(t, 0.41, pe, 1e-12)

	// A second finding on the same variable replaces the first.
	require.NoError(t, e.EnterEvidence("Alarm", "off"))
	assert.Equal(t, map[string]string{"Alarm": "off"}, e.Evidence())
	p, err = e.BeliefOf("Burglary", "yes")
	require.NoError(t, err)
	assert.InDelta(t, 0.03/0.59, p, 1e-12)

	require.NoError(t, e.EnterEvidence("Burglary", "no"))
	pe, err = e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.InDelta(t, 0.7*0.8, pe, 1e-12)
}

func TestRetractRestoresPriors(t *testing.T) {
	e := alarm(t, [][]float64{{0.9, 0.1}, {0.2, 0.8}})
	prior := probs(t, e, "Burglary")

	require.NoError(t, e.EnterEvidence("Alarm", "on"))
	require.NoError(t, e.EnterEvidence("Burglary", "yes"))
	require.NoError(t, e.RetractEvidence("Burglary"))
	assert.Equal(t, map[string]string{"Alarm": "on"}, e.Evidence())

	require.NoError(t, e.RetractEvidence("Alarm"))
	assert.Empty(t, e.Evidence())
	assert.InDeltaSlice(t, prior, probs(t, e, "Burglary"), 1e-12)

	require.NoError(t, e.EnterEvidence("Alarm", "off"))
	e.RetractAll()
	assert.Empty(t, e.Evidence())
	assert.InDeltaSlice(t, prior, probs(t, e, "Burglary"), 1e-12)
}

func TestZeroProbabilityEvidence(t *testing.T) {
	e := alarm(t, [][]float64{{1, 0}, {1, 0}})

	require.NoError(t, e.EnterEvidence("Alarm", "off"))
	_, err := e.Belief("Burglary")
	assert.ErrorIs(t, err, internalerr.ErrZeroProbabilityEvidence)
	_, err = e.BeliefOf("Alarm", "on")
	assert.ErrorIs(t, err, internalerr.ErrZeroProbabilityEvidence)

	p, err := e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.Zero(t, p)

	require.NoError(t, e.RetractEvidence("Alarm"))
	assert.InDeltaSlice(t, []float64{1, 0}, probs(t, e, "Alarm"), 1e-12)
}

func TestQueryErrors(t *testing.T) {
	e := alarm(t, [][]float64{{0.9, 0.1}, {0.2, 0.8}})

	_, err := e.Belief("Earthquake")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	_, err = e.BeliefOf("Alarm", "ringing")
	assert.ErrorIs(t, err, internalerr.ErrUnknownState)
	assert.ErrorIs(t, e.EnterEvidence("Earthquake", "yes"), internalerr.ErrNotFound)
	assert.ErrorIs(t, e.EnterEvidence("Alarm", "ringing"), internalerr.ErrUnknownState)
	assert.ErrorIs(t, e.RetractEvidence("Earthquake"), internalerr.ErrNotFound)
	assert.Empty(t, e.Evidence())
}

func TestStateTransitions(t *testing.T) {
	calibrations := 0
	e := alarm(t, [][]float64{{0.9, 0.1}, {0.2, 0.8}})
	e.onCalibrate = func(time.Duration) { calibrations++ }
	assert.Equal(t, Uncalibrated, e.State())

	probs(t, e, "Alarm")
	probs(t, e, "Burglary")
	assert.Equal(t, Calibrated, e.State())
	assert.Equal(t, 1, calibrations)

	require.NoError(t, e.RetractEvidence("Alarm"))
	assert.Equal(t, Calibrated, e.State(), "retracting nothing keeps the beliefs")

	require.NoError(t, e.EnterEvidence("Alarm", "on"))
	assert.Equal(t, Uncalibrated, e.State())
	probs(t, e, "Burglary")
	assert.Equal(t, 2, calibrations)
	assert.Equal(t, "calibrated", e.State().String())
}

func TestForestEvidenceIsPerComponent(t *testing.T) {
	net := network.New(network.Options{})
	a, _ := net.CreateVariable("A", []string{"t", "f"}, "")
	b, _ := net.CreateVariable("B", []string{"t", "f"}, "")
	require.NoError(t, net.SetTable(a, [][]float64{{0.25, 0.75}}))
	require.NoError(t, net.SetTable(b, [][]float64{{1, 0}}))
	tree, err := jointree.Compile(net, jointree.Options{Disconnected: jointree.Forest})
	require.NoError(t, err)
	e := New(tree, Options{})

	require.NoError(t, e.EnterEvidence("A", "f"))
	pe, err := e.ProbabilityOfEvidence()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, pe, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0}, probs(t, e, "B"), 1e-12)

	require.NoError(t, e.EnterEvidence("B", "f"))
	_, err = e.Belief("A")
	assert.ErrorIs(t, err, internalerr.ErrZeroProbabilityEvidence)
}

func TestConcurrentQueries(t *testing.T) {
	e := alarm(t, [][]float64{{0.9, 0.1}, {0.2, 0.8}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i == 0 {
					if j%2 == 0 {
						assert.NoError(t, e.EnterEvidence("Alarm", "on"))
					} else {
						assert.NoError(t, e.RetractEvidence("Alarm"))
					}
					continue
				}
				b, err := e.Belief("Burglary")
				if assert.NoError(t, err) {
					assert.InDelta(t, 1.0, b[0].Probability+b[1].Probability, 1e-12)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestMatchesEnumeration(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("beliefs equal brute-force posteriors", prop.ForAll(
		func(seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			net, err := nettest.RandomNetwork(rng, 7, 3)
			if err != nil {
				return false
			}
			tree, err := jointree.Compile(net, jointree.Options{Disconnected: jointree.Forest})
			if err != nil {
				return false
			}
			e := New(tree, Options{})

			vars := net.Variables()
			evidence := make(map[network.VariableID]int)
			for _, v := range vars {
				if rng.Intn(4) == 0 {
					s := rng.Intn(v.Arity())
					evidence[v.ID] = s
					if e.EnterEvidence(v.Name, v.States[s]) != nil {
						return false
					}
				}
			}

			want, total, err := nettest.Posterior(net, evidence)
			if err != nil {
				return false
			}
			pe, err := e.ProbabilityOfEvidence()
			if err != nil || !near(pe, total) {
				return false
			}
			for _, v := range vars {
				b, err := e.Belief(v.Name)
				if total == 0 {
					if !errors.Is(err, internalerr.ErrZeroProbabilityEvidence) {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				for s, sb := range b {
					if !near(sb.Probability, want[v.ID][s]) {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
