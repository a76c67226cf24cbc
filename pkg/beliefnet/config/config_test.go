package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/beliefnet/pkg/beliefnet/equation"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/jointree"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

const privacyModel = `name: informational-privacy
variables:
  - name: InfoGap
    title: Information gap
    states: [Gap_Present, Gap_Absent]
    table:
      - [0.46, 0.54]
  - name: InformationFlow
    states: [present, absent]
    table:
      - [0.42, 0.58]
  - name: InfoPriv
    states: [present, absent]
    parents: [InfoGap, InformationFlow]
    equation: >-
      InfoPriv (InfoGap, InformationFlow) =
      InfoGap == "Gap_Absent" || InformationFlow == "present" ? "present" : "absent"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Elimination != jointree.MinFill || cfg.Disconnected != jointree.Reject {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	lvl, err := cfg.Level()
	if err != nil || lvl != logrus.InfoLevel {
		t.Errorf("Level() = %v, %v", lvl, err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `elimination: min-degree
disconnected: forest
max_table_size: 4096
equation:
  tie_break: uniform
  noise: 0.05
log_level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Elimination != jointree.MinDegree {
		t.Errorf("Elimination = %q", cfg.Elimination)
	}
	if cfg.Disconnected != jointree.Forest {
		t.Errorf("Disconnected = %q", cfg.Disconnected)
	}
	if cfg.MaxTableSize != 4096 {
		t.Errorf("MaxTableSize = %d", cfg.MaxTableSize)
	}
	if cfg.Equation.TieBreak != equation.TieBreakUniform || cfg.Equation.Noise != 0.05 {
		t.Errorf("Equation = %+v", cfg.Equation)
	}
	// Unset keys keep their defaults
	if cfg.Epsilon != network.DefaultEpsilon {
		t.Errorf("Epsilon = %v", cfg.Epsilon)
	}

	opts := cfg.CompileOptions(logrus.New())
	if opts.Heuristic != jointree.MinDegree || opts.MaxTableSize != 4096 || opts.Logger == nil {
		t.Errorf("CompileOptions = %+v", opts)
	}
	nopts := cfg.NetworkOptions("m")
	if nopts.Name != "m" || nopts.Equation.TieBreak != equation.TieBreakUniform {
		t.Errorf("NetworkOptions = %+v", nopts)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown heuristic", "elimination: min-weight\n"},
		{"unknown disconnected policy", "disconnected: merge\n"},
		{"negative table size", "max_table_size: -1\n"},
		{"noise out of range", "equation:\n  noise: 1.5\n"},
		{"unknown tie break", "equation:\n  tie_break: random\n"},
		{"zero epsilon", "epsilon: 0\n"},
		{"bad log level", "log_level: loud\n"},
		{"malformed yaml", "elimination: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.content)
			_, err := LoadConfig(path)
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("Should error on nonexistent config")
	}
}

func TestLoadModel(t *testing.T) {
	path := writeFile(t, "model.yaml", privacyModel)

	def, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if def.Name != "informational-privacy" || len(def.Variables) != 3 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	priv := def.Variables[2]
	if len(priv.Parents) != 2 || priv.Parents[0] != "InfoGap" {
		t.Errorf("parents = %v", priv.Parents)
	}
	if priv.Equation == "" {
		t.Error("equation not loaded")
	}
}

func TestParseModelStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no variables", "name: empty\n"},
		{"single state", "variables:\n  - name: A\n    states: [only]\n"},
		{"missing name", "variables:\n  - states: [a, b]\n"},
		{"empty state label", "variables:\n  - name: A\n    states: [a, \"\"]\n"},
		{"short row", "variables:\n  - name: A\n    states: [a, b]\n    rows:\n      - probs: [1]\n"},
		{"malformed yaml", "variables: {\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel([]byte(tt.content))
			if !errors.Is(err, internalerr.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
