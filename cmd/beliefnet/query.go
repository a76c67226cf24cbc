package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cognicore/beliefnet/pkg/beliefnet"
	"github.com/cognicore/beliefnet/pkg/beliefnet/config"
)

func newQueryCmd() *cobra.Command {
	var (
		modelPath  string
		configPath string
		evidence   []string
		vars       []string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compile a model and print posterior beliefs",
		RunE: func(cmd *cobra.Command, args []string) error {
			findings, err := parseEvidence(evidence)
			if err != nil {
				return err
			}

			loader := config.Loader{ModelPath: modelPath, ConfigPath: configPath}
			comp, err := loader.Load()
			if err != nil {
				return err
			}
			if configPath != "" {
				if err := applyLogLevel(cmd, comp.Config); err != nil {
					return err
				}
			}
			bn, err := beliefnet.New(beliefnet.Options{Network: comp.Network, Config: &comp.Config})
			if err != nil {
				return err
			}
			defer bn.Close()

			if err := bn.Compile(); err != nil {
				return err
			}
			for _, f := range findings {
				if err := bn.EnterEvidence(f.Variable, f.State); err != nil {
					return err
				}
			}

			if len(vars) == 0 {
				for _, v := range comp.Network.Variables() {
					vars = append(vars, v.Name)
				}
			}
			return printBeliefs(cmd.OutOrStdout(), bn, vars, len(findings) > 0)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model definition (YAML)")
	cmd.Flags().StringVar(&configPath, "config", "", "Engine configuration (YAML)")
	cmd.Flags().StringArrayVar(&evidence, "evidence", nil, "Finding as Var=state (repeatable)")
	cmd.Flags().StringSliceVar(&vars, "var", nil, "Variables to print (default all)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// applyLogLevel sets the level from the config file unless --log-level was
// given on the command line.
func applyLogLevel(cmd *cobra.Command, cfg config.Config) error {
	if cmd.Flags().Changed("log-level") {
		return nil
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}

func printBeliefs(w io.Writer, bn *beliefnet.BeliefNet, vars []string, withEvidence bool) error {
	for _, name := range vars {
		belief, err := bn.Belief(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", name)
		for _, sb := range belief {
			fmt.Fprintf(w, "  %-20s %.6f\n", sb.State, sb.Probability)
		}
	}
	if withEvidence {
		p, err := bn.ProbabilityOfEvidence()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "P(evidence) = %.6f\n", p)
	}
	return nil
}
