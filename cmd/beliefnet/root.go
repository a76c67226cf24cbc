package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

// newRootCmd builds the command tree. Flags live on the commands so that
// tests can build a fresh tree per run.
func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "beliefnet",
		Short:         "Compile and query discrete Bayesian networks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, internalerr.ErrInvalidConfig)
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	root.AddCommand(newQueryCmd(), newSaveCmd(), newShowCmd(), newListCmd())
	return root
}

// finding is one Var=state flag value.
type finding struct {
	Variable string
	State    string
}

// parseEvidence splits Var=state pairs, keeping flag order.
func parseEvidence(values []string) ([]finding, error) {
	out := make([]finding, 0, len(values))
	for _, v := range values {
		name, state, ok := strings.Cut(v, "=")
		name, state = strings.TrimSpace(name), strings.TrimSpace(state)
		if !ok || name == "" || state == "" {
			return nil, fmt.Errorf("evidence %q: want Var=state: %w", v, internalerr.ErrInvalidInput)
		}
		out = append(out, finding{Variable: name, State: state})
	}
	return out, nil
}
