package outreach

import (
	"fmt"
	"strings"

	"github.com/sells-group/signals-cli/internal/model"
)

var subjectByCategory = map[model.Category]string{
	model.CategoryHurricane:        "Storm response capacity for %s",
	model.CategoryStormWatch:       "Severe weather prep for %s",
	model.CategoryGrowth:           "Congrats on the expansion, %s",
	model.CategoryCompetitorShift:  "Market changes near %s",
	model.CategoryReview:           "Your recent reviews at %s",
	model.CategoryReputationChange: "Your recent reviews at %s",
	model.CategoryPermit:           "Your upcoming project at %s",
	model.CategoryJobPosting:       "Scaling the team at %s",
}

// Compose builds the outbound message for a lead. The customer address
// gets a copy and receives replies.
func Compose(lead *model.LeadEvent, customerEmail string) model.Message {
	name := lead.LeadName
	if name == "" {
		name = "your business"
	}

	tmpl, ok := subjectByCategory[lead.Category]
	if !ok {
		tmpl = "Reaching out to %s"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s team,\n\n", name)
	b.WriteString(bodyForCategory(lead.Category))
	b.WriteString("\n\nIf now is a bad time, just say so and we won't follow up.\n")

	return model.Message{
		To:      lead.LeadEmail,
		CC:      customerEmail,
		ReplyTo: customerEmail,
		Subject: fmt.Sprintf(tmpl, name),
		Body:    b.String(),
	}
}

func bodyForCategory(cat model.Category) string {
	switch cat {
	case model.CategoryHurricane, model.CategoryStormWatch:
		return "With severe weather moving through your area, demand for inspections and repairs is about to spike. We help contractors like you handle the surge without losing leads."
	case model.CategoryGrowth:
		return "We noticed your business is growing. Congratulations. We work with expanding contractors to keep their pipeline full while they scale."
	case model.CategoryReview, model.CategoryReputationChange:
		return "We noticed recent review activity around your business. We help contractors turn reputation moments into new work."
	case model.CategoryPermit:
		return "We saw a new permit associated with your business. We help contractors line up the next project before the current one wraps."
	case model.CategoryJobPosting:
		return "We saw you're hiring. Teams that are staffing up usually need more work in the pipeline, and that's what we do."
	default:
		return "We came across your business and think we can help keep your project pipeline full."
	}
}
