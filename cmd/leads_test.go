//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
)

func TestLeadsExportCmd_WritesWorkbook(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_leads.db")

	seed, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, seed.Migrate(context.Background()))

	sig := &model.Signal{
		Source:     "news",
		Category:   model.CategoryGrowth,
		Title:      "Acme Roofing expands",
		URL:        "https://example-wire.com/acme",
		ObservedAt: time.Now(),
	}
	_, err = seed.InsertSignal(context.Background(), sig)
	require.NoError(t, err)

	lead := &model.LeadEvent{
		SignalID:  sig.ID,
		Score:     82,
		Category:  sig.Category,
		Tier:      model.TierHigh,
		State:     model.StateEnrichedNoOutbound,
		LeadName:  "Acme Roofing",
		LeadEmail: "office@acmeroofing.com",
	}
	require.NoError(t, seed.CreateLead(context.Background(), lead))
	require.NoError(t, seed.Close())

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: dbPath,
		},
		Pipeline: config.PipelineConfig{Mode: "full", Workers: 1},
	}

	outPath := filepath.Join(tmpDir, "leads.xlsx")
	leadsState = ""
	leadsLimit = 10
	exportOut = outPath

	leadsExportCmd.SetContext(context.Background())
	defer leadsExportCmd.SetContext(nil)

	require.NoError(t, leadsExportCmd.RunE(leadsExportCmd, nil))

	file, err := xlsx.OpenFile(outPath)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	sheet := file.Sheets[0]
	assert.Equal(t, "Leads", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "ID", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, lead.ID, sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "Acme Roofing", sheet.Rows[1].Cells[4].Value)
}

func TestLeadsRequeueCmd_UnknownLead(t *testing.T) {
	tmpDir := t.TempDir()

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(tmpDir, "test_requeue.db"),
		},
		Pipeline: config.PipelineConfig{Mode: "full", Workers: 1},
	}

	leadsRequeueCmd.SetContext(context.Background())
	defer leadsRequeueCmd.SetContext(nil)

	err := leadsRequeueCmd.RunE(leadsRequeueCmd, []string{"missing-id"})
	require.Error(t, err)
}
