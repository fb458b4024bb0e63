package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferCategory(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"Hurricane warning issued for Miami-Dade", CategoryHurricane},
		{"Tornado watch in effect through Friday", CategoryStormWatch},
		{"Acme Roofing acquired by national franchise", CategoryCompetitorShift},
		{"Local contractor expanding into Orlando", CategoryGrowth},
		{"Review bomb hits Tampa roofing company", CategoryReputationChange},
		{"Five-star rating streak for Gulf Coast Exteriors", CategoryReview},
		{"Re-roofing permit filed downtown", CategoryPermit},
		{"Now hiring: crew leads and estimators", CategoryJobPosting},
		{"Roofing supplier files for bankruptcy", CategoryDistress},
		{"OSHA violation reported at job site", CategoryRegulatory},
		{"City council meets Tuesday", CategoryNews},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCategory(tt.text))
		})
	}
}

func TestCategoryPrecedence(t *testing.T) {
	// storm keywords outrank growth keywords when both appear
	got := InferCategory("Hurricane recovery drives expansion for local roofers")
	assert.Equal(t, CategoryHurricane, got)
}
