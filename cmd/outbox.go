package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/model"
)

var outboxStatus string

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Review queued outbound messages",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages in the review queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pending, err := env.Store.ListPending(ctx, model.PendingStatus(outboxStatus))
		if err != nil {
			return eris.Wrap(err, "list pending outbound")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	},
}

var outboxApproveCmd = &cobra.Command{
	Use:   "approve <pending-id>",
	Short: "Approve and send a queued message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Gate.ApprovePending(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("pending outbound approved", zap.String("pending_id", args[0]))
		return nil
	},
}

var outboxRejectCmd = &cobra.Command{
	Use:   "reject <pending-id>",
	Short: "Reject a queued message without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Gate.RejectPending(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("pending outbound rejected", zap.String("pending_id", args[0]))
		return nil
	},
}

func init() {
	outboxListCmd.Flags().StringVar(&outboxStatus, "status", string(model.PendingOpen), "filter by status")

	outboxCmd.AddCommand(outboxListCmd)
	outboxCmd.AddCommand(outboxApproveCmd)
	outboxCmd.AddCommand(outboxRejectCmd)
	rootCmd.AddCommand(outboxCmd)
}
