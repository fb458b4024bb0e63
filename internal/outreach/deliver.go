package outreach

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/model"
)

// Deliverer hands a composed message to a delivery channel.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, msg model.Message) error
}

// DryRunDeliverer logs the message instead of sending it. The default
// channel: nothing leaves the machine unless explicitly configured.
type DryRunDeliverer struct{}

func (DryRunDeliverer) Name() string { return "dry_run" }

func (DryRunDeliverer) Deliver(_ context.Context, msg model.Message) error {
	zap.L().Info("dry-run delivery",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)))
	return nil
}

// NewDeliverer resolves the configured email mode. Unrecognized modes fall
// back to dry-run with a warning rather than failing the pipeline.
func NewDeliverer(emailMode string) Deliverer {
	switch emailMode {
	case "", "dry_run":
		return DryRunDeliverer{}
	default:
		zap.L().Warn("unknown email mode, falling back to dry-run",
			zap.String("email_mode", emailMode))
		return DryRunDeliverer{}
	}
}
