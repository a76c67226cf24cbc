package config

import (
	"fmt"

	"github.com/cognicore/beliefnet/pkg/beliefnet/network"
)

// Loader loads the configuration and model files
type Loader struct {
	ModelPath  string
	ConfigPath string
}

// Components holds the loaded settings and the uncompiled network
type Components struct {
	Config  Config
	Network *network.Network
}

// Load reads both files and builds the network. Without a config path the
// defaults apply; without a model path Network is nil.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{Config: DefaultConfig()}

	if l.ConfigPath != "" {
		cfg, err := LoadConfig(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Config = cfg
	}

	if l.ModelPath != "" {
		def, err := LoadModel(l.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		net, err := network.FromDefinition(def, comp.Config.NetworkOptions(def.Name))
		if err != nil {
			return nil, fmt.Errorf("build model %s: %w", l.ModelPath, err)
		}
		comp.Network = net
	}

	return comp, nil
}
