package main

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
)

var (
	leadsState   string
	leadsLimit   int
	requeueState string
	exportOut    string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and manage promoted leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, optionally filtered by state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Store.ListLeads(ctx, leadFilter())
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

var leadsRequeueCmd = &cobra.Command{
	Use:   "requeue <lead-id>",
	Short: "Return an archived lead to the enrichment queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		to := model.EnrichState(requeueState)
		if err := env.Store.RequeueLead(ctx, args[0], to); err != nil {
			return eris.Wrapf(err, "requeue lead %s", args[0])
		}
		note := model.MissionLogEntry{
			Phase:   model.PhaseArchive,
			Action:  "requeue",
			Result:  string(to),
			Detail:  "operator requeue",
			Success: true,
		}
		if err := env.Store.RecordAttempt(ctx, args[0], note, nil); err != nil {
			return eris.Wrapf(err, "log requeue for lead %s", args[0])
		}
		zap.L().Info("lead requeued",
			zap.String("lead_id", args[0]), zap.String("state", requeueState))
		return nil
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Store.ListLeads(ctx, leadFilter())
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Leads")
		if err != nil {
			return eris.Wrap(err, "add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{
			"ID", "State", "Tier", "Score", "Name", "Domain", "Email",
			"Phone", "Category", "Attempts", "Archive Reason", "Created", "Sent",
		} {
			header.AddCell().Value = h
		}

		for _, lead := range leads {
			row := sheet.AddRow()
			row.AddCell().Value = lead.ID
			row.AddCell().Value = string(lead.State)
			row.AddCell().Value = string(lead.Tier)
			row.AddCell().Value = strconv.FormatFloat(lead.Score, 'f', 1, 64)
			row.AddCell().Value = lead.LeadName
			row.AddCell().Value = lead.LeadDomain
			row.AddCell().Value = lead.LeadEmail
			row.AddCell().Value = lead.LeadPhone
			row.AddCell().Value = string(lead.Category)
			row.AddCell().Value = strconv.Itoa(lead.Attempts)
			row.AddCell().Value = lead.ArchiveReason
			row.AddCell().Value = lead.CreatedAt.Format(time.RFC3339)
			if lead.SentAt != nil {
				row.AddCell().Value = lead.SentAt.Format(time.RFC3339)
			} else {
				row.AddCell().Value = ""
			}
		}

		if err := file.Save(exportOut); err != nil {
			return eris.Wrapf(err, "save %s", exportOut)
		}
		zap.L().Info("leads exported",
			zap.Int("count", len(leads)), zap.String("path", exportOut))
		return nil
	},
}

func leadFilter() store.LeadFilter {
	filter := store.LeadFilter{Limit: leadsLimit}
	if leadsState != "" {
		filter.States = []model.EnrichState{model.EnrichState(leadsState)}
	}
	return filter
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsState, "state", "", "filter by enrichment state")
	leadsListCmd.Flags().IntVar(&leadsLimit, "limit", 50, "maximum leads to return")

	leadsRequeueCmd.Flags().StringVar(&requeueState, "to", string(model.StateUnenriched), "state to requeue into")

	leadsExportCmd.Flags().StringVar(&leadsState, "state", "", "filter by enrichment state")
	leadsExportCmd.Flags().IntVar(&leadsLimit, "limit", 1000, "maximum leads to export")
	leadsExportCmd.Flags().StringVar(&exportOut, "out", "leads.xlsx", "output path")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsRequeueCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
