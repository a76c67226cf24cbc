package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/beliefnet/pkg/beliefnet/equation"
	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
	"github.com/cognicore/beliefnet/pkg/beliefnet/jointree"
	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config holds engine settings
type Config struct {
	Epsilon      float64               `yaml:"epsilon" validate:"gt=0,lt=0.1"`
	Elimination  jointree.Heuristic    `yaml:"elimination" validate:"oneof=min-fill min-degree"`
	Disconnected jointree.Disconnected `yaml:"disconnected" validate:"oneof=reject forest"`
	MaxTableSize int                   `yaml:"max_table_size" validate:"gte=0"`
	Equation     equation.Options      `yaml:"equation"`
	LogLevel     string                `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Epsilon:      network.DefaultEpsilon,
		Elimination:  jointree.MinFill,
		Disconnected: jointree.Reject,
		Equation:     equation.Options{TieBreak: equation.TieBreakStrict},
		LogLevel:     "info",
	}
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%s: %w", formatValidationError(err), internalerr.ErrInvalidConfig)
	}
	return nil
}

// LoadConfig loads settings from a YAML file. Missing keys keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %v: %w", path, err, internalerr.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// NetworkOptions returns the options for a network named name.
func (c Config) NetworkOptions(name string) network.Options {
	return network.Options{Name: name, Epsilon: c.Epsilon, Equation: c.Equation}
}

// CompileOptions returns join tree options.
func (c Config) CompileOptions(log logrus.FieldLogger) jointree.Options {
	return jointree.Options{
		Heuristic:    c.Elimination,
		Disconnected: c.Disconnected,
		MaxTableSize: c.MaxTableSize,
		Logger:       log,
	}
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(c.LogLevel)
}

// LoadModel loads a network definition from a YAML file and checks its
// structure. Probabilities and equations are checked when the network is
// built.
func LoadModel(path string) (network.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return network.Definition{}, err
	}
	return ParseModel(data)
}

// ParseModel parses a YAML network definition.
func ParseModel(data []byte) (network.Definition, error) {
	var def network.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return network.Definition{}, fmt.Errorf("parse model: %v: %w", err, internalerr.ErrInvalidInput)
	}
	if err := validate.Struct(def); err != nil {
		return network.Definition{}, fmt.Errorf("model: %s: %w", formatValidationError(err), internalerr.ErrInvalidInput)
	}
	return def, nil
}

// formatValidationError joins field errors into one readable line
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
