package model

import "time"

// Mode gates the pipeline globally. Full promotes, sandbox scores without
// promoting, off skips adapter invocation entirely.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeSandbox Mode = "sandbox"
	ModeOff     Mode = "off"
)

// Valid reports whether m is a recognized pipeline mode.
func (m Mode) Valid() bool {
	return m == ModeFull || m == ModeSandbox || m == ModeOff
}

// OutreachMode decides what happens to a lead that clears the gate.
type OutreachMode string

const (
	OutreachAuto   OutreachMode = "AUTO"   // send immediately
	OutreachReview OutreachMode = "REVIEW" // queue for human approval
)

// GateOutcome is the gate's verdict for one lead.
type GateOutcome string

const (
	GateSend     GateOutcome = "SEND"
	GateQueue    GateOutcome = "QUEUE"
	GateSuppress GateOutcome = "SUPPRESS"
)

// GateDecision carries the outcome plus the rule that triggered suppression.
type GateDecision struct {
	Outcome GateOutcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
}

// Message is the payload handed to the delivery collaborator.
type Message struct {
	To      string `json:"to"`
	CC      string `json:"cc,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PendingStatus tracks a queued outbound through review.
type PendingStatus string

const (
	PendingOpen     PendingStatus = "open"
	PendingApproved PendingStatus = "approved"
	PendingRejected PendingStatus = "rejected"
)

// PendingOutbound is a gate-approved message awaiting human review.
type PendingOutbound struct {
	ID       string        `json:"id"`
	LeadID   string        `json:"lead_id"`
	Message  Message       `json:"message"`
	Status   PendingStatus `json:"status"`
	QueuedAt time.Time     `json:"queued_at"`
}

// OutboundRecord logs one completed send for rate-limit accounting.
type OutboundRecord struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
}
