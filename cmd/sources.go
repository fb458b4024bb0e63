package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and manage signal source adapters",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List adapters with health and enablement",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		health, err := env.Store.ListAdapterHealth(ctx)
		if err != nil {
			return eris.Wrap(err, "list adapter health")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(health)
	},
}

var sourcesResetCmd = &cobra.Command{
	Use:   "reset <adapter>",
	Short: "Re-enable a disabled adapter and clear its failure count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.ResetAdapter(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "reset adapter %s", args[0])
		}
		zap.L().Info("adapter reset", zap.String("adapter", args[0]))
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesResetCmd)
	rootCmd.AddCommand(sourcesCmd)
}
