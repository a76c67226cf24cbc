package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/beliefnet/pkg/beliefnet"
	"github.com/cognicore/beliefnet/pkg/beliefnet/config"
	"github.com/cognicore/beliefnet/pkg/beliefnet/store/sqlite"
)

func newSaveCmd() *cobra.Command {
	var dbPath, modelPath string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store a model as a snapshot and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := (&config.Loader{ModelPath: modelPath}).Load()
			if err != nil {
				return err
			}
			st, err := sqlite.OpenSQLite(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			bn, err := beliefnet.New(beliefnet.Options{Network: comp.Network, Store: st})
			if err != nil {
				st.Close()
				return err
			}
			defer bn.Close()

			id, err := bn.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "beliefnet.db", "SQLite database path")
	cmd.Flags().StringVar(&modelPath, "model", "", "Model definition (YAML)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newShowCmd() *cobra.Command {
	var dbPath, id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored snapshot as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := sqlite.OpenSQLite(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.GetSnapshot(cmd.Context(), id)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(snap.Definition)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "beliefnet.db", "SQLite database path")
	cmd.Flags().StringVar(&id, "id", "", "Snapshot id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newListCmd() *cobra.Command {
	var dbPath, name string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := sqlite.OpenSQLite(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			infos, err := st.ListSnapshots(cmd.Context(), name)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, info := range infos {
				fmt.Fprintf(w, "%s  %-24s  %3d vars  %s\n",
					info.ID, info.Name, info.Variables, info.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "beliefnet.db", "SQLite database path")
	cmd.Flags().StringVar(&name, "name", "", "Only list snapshots of this network")
	return cmd
}
