package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full pipeline cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.RunCycle(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline cycle")
		}

		zap.L().Info("cycle finished",
			zap.Int("scored", result.Scored),
			zap.Int("promoted", result.Promoted),
			zap.Int("dispatched", result.Enriched.Dispatched))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
