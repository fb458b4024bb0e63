package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/model"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Inspect or override the pipeline mode",
}

var modeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the effective pipeline mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		fmt.Println(env.Pipeline.EffectiveMode(ctx))
		return nil
	},
}

var modeSetCmd = &cobra.Command{
	Use:   "set <full|sandbox|off>",
	Short: "Override the pipeline mode at runtime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pipeline.SetMode(ctx, model.Mode(args[0])); err != nil {
			return err
		}
		zap.L().Info("pipeline mode set", zap.String("mode", args[0]))
		return nil
	},
}

func init() {
	modeCmd.AddCommand(modeGetCmd)
	modeCmd.AddCommand(modeSetCmd)
	rootCmd.AddCommand(modeCmd)
}
