package beliefnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/beliefnet/pkg/beliefnet/config"
	"github.com/cognicore/beliefnet/pkg/beliefnet/inference"
	"github.com/cognicore/beliefnet/pkg/beliefnet/inference/jtree"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/jointree"
	"github.com/cognicore/beliefnet/pkg/beliefnet/metrics"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
	"github.com/cognicore/beliefnet/pkg/beliefnet/store"
)

// BeliefNet is the main facade: an editable network, the engine compiled
// from it and optional snapshot storage.
type BeliefNet struct {
	mu sync.RWMutex

	net     *network.Network
	store   store.Store
	cfg     config.Config
	log     logrus.FieldLogger
	metrics *metrics.Collector

	tree   *jointree.Tree
	engine *jtree.Engine
}

// Options configures a BeliefNet instance
type Options struct {
	Network *network.Network   // nil starts an empty network
	Store   store.Store        // optional; required by Save
	Config  *config.Config     // nil means config.DefaultConfig()
	Logger  logrus.FieldLogger // nil means logrus.StandardLogger()
	Metrics *metrics.Collector // optional
}

// New creates a BeliefNet with the given dependencies
func New(opts Options) (*BeliefNet, error) {
	cfg := config.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Network == nil {
		opts.Network = network.New(cfg.NetworkOptions(""))
	}

	return &BeliefNet{
		net:     opts.Network,
		store:   opts.Store,
		cfg:     cfg,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Close cleanly shuts down the instance
func (b *BeliefNet) Close() error {
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}

// Network returns the editable network. Edits made after Compile make every
// query fail with ErrUncompiledModel until the next Compile.
func (b *BeliefNet) Network() *network.Network {
	return b.net
}

// Config returns the active settings.
func (b *BeliefNet) Config() config.Config {
	return b.cfg
}

// Tree returns the current join tree, if compiled.
func (b *BeliefNet) Tree() (*jointree.Tree, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree, b.tree != nil
}

// Compile builds a fresh join tree and engine. Existing evidence is dropped.
func (b *BeliefNet) Compile() error {
	return b.compile(nil)
}

// Recompile builds a fresh join tree and engine and re-enters every finding
// that still names an existing variable and state.
func (b *BeliefNet) Recompile() error {
	b.mu.RLock()
	var findings map[string]string
	if b.engine != nil {
		findings = b.engine.Evidence()
	}
	b.mu.RUnlock()
	return b.compile(findings)
}

func (b *BeliefNet) compile(findings map[string]string) error {
	start := time.Now()
	tree, err := jointree.Compile(b.net, b.cfg.CompileOptions(b.log))
	elapsed := time.Since(start)
	if err != nil {
		b.metrics.RecordCompile(elapsed, 0, 0, err)
		return fmt.Errorf("compile %q: %w", b.net.Name(), err)
	}
	st := tree.Stats()
	b.metrics.RecordCompile(elapsed, st.Cliques, st.MaxTableSize, nil)

	engine := jtree.New(tree, jtree.Options{
		Logger:      b.log,
		OnCalibrate: b.metrics.RecordCalibration,
	})
	for name, state := range findings {
		if err := engine.EnterEvidence(name, state); err != nil {
			b.log.WithError(err).WithField("variable", name).Warn("dropping finding after recompile")
		}
	}

	b.mu.Lock()
	b.tree = tree
	b.engine = engine
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"network":  b.net.Name(),
		"version":  tree.Version,
		"cliques":  st.Cliques,
		"evidence": len(findings),
		"elapsed":  elapsed,
	}).Info("compiled network")
	return nil
}

// current returns the engine when it matches the network's version.
func (b *BeliefNet) current() (*jtree.Engine, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.engine == nil {
		return nil, fmt.Errorf("network %q not compiled: %w", b.net.Name(), internalerr.ErrUncompiledModel)
	}
	if v := b.net.Version(); v != b.tree.Version {
		return nil, fmt.Errorf("network %q changed since compile (version %d, compiled %d): %w",
			b.net.Name(), v, b.tree.Version, internalerr.ErrUncompiledModel)
	}
	return b.engine, nil
}

// Belief returns the posterior distribution of a variable.
func (b *BeliefNet) Belief(variable string) ([]inference.StateBelief, error) {
	e, err := b.current()
	if err != nil {
		return nil, err
	}
	return e.Belief(variable)
}

// BeliefOf returns the posterior probability of one state.
func (b *BeliefNet) BeliefOf(variable, state string) (float64, error) {
	e, err := b.current()
	if err != nil {
		return 0, err
	}
	return e.BeliefOf(variable, state)
}

// EnterEvidence fixes a variable to one of its states.
func (b *BeliefNet) EnterEvidence(variable, state string) error {
	e, err := b.current()
	if err != nil {
		return err
	}
	if err := e.EnterEvidence(variable, state); err != nil {
		return err
	}
	b.metrics.RecordEvidence("enter")
	return nil
}

// RetractEvidence removes the finding on a variable. Only an actual removal
// is counted as an evidence update.
func (b *BeliefNet) RetractEvidence(variable string) error {
	e, err := b.current()
	if err != nil {
		return err
	}
	_, had := e.Evidence()[variable]
	if err := e.RetractEvidence(variable); err != nil {
		return err
	}
	if had {
		b.metrics.RecordEvidence("retract")
	}
	return nil
}

// RetractAll removes every finding.
func (b *BeliefNet) RetractAll() error {
	e, err := b.current()
	if err != nil {
		return err
	}
	had := len(e.Evidence()) > 0
	e.RetractAll()
	if had {
		b.metrics.RecordEvidence("retract_all")
	}
	return nil
}

// Evidence returns the current findings.
func (b *BeliefNet) Evidence() (map[string]string, error) {
	e, err := b.current()
	if err != nil {
		return nil, err
	}
	return e.Evidence(), nil
}

// ProbabilityOfEvidence returns P(evidence) under the compiled model.
func (b *BeliefNet) ProbabilityOfEvidence() (float64, error) {
	e, err := b.current()
	if err != nil {
		return 0, err
	}
	return e.ProbabilityOfEvidence()
}

// Save stores a snapshot of the uncompiled network and returns its ID.
func (b *BeliefNet) Save(ctx context.Context) (string, error) {
	if b.store == nil {
		return "", fmt.Errorf("save %q: no store configured: %w", b.net.Name(), internalerr.ErrStoreUnavailable)
	}
	snap := store.NewSnapshot(b.net.Definition())
	if err := b.store.SaveSnapshot(ctx, snap); err != nil {
		return "", fmt.Errorf("save %q: %w", snap.Name, err)
	}
	b.log.WithFields(logrus.Fields{
		"network":  snap.Name,
		"snapshot": snap.ID,
	}).Info("saved network")
	return snap.ID, nil
}

// Load rebuilds an uncompiled BeliefNet from a stored snapshot. opts.Store
// is replaced by st and opts.Network by the snapshot's network.
func Load(ctx context.Context, st store.Store, id string, opts Options) (*BeliefNet, error) {
	snap, err := st.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	net, err := network.FromDefinition(snap.Definition, cfg.NetworkOptions(snap.Name))
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}

	opts.Network = net
	opts.Store = st
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	b.log.WithFields(logrus.Fields{
		"network":  snap.Name,
		"snapshot": snap.ID,
	}).Info("loaded network")
	return b, nil
}
