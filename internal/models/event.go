package models

import "time"

// Workflow machines emitting transition events.
const (
	MachineExhumation  = "exhumation"
	MachineReservation = "reservation"
	MachinePlot        = "plot"
)

// Event topics published on the in-process hub.
const (
	TopicTransitioned = "workflow.transitioned"
	TopicPlotChanged  = "plot.changed"
)

// TransitionEvent is published after a workflow transition has been committed.
type TransitionEvent struct {
	Machine    string    `json:"machine"`
	RequestID  string    `json:"request_id"`
	PlotID     string    `json:"plot_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PlotChangedEvent is published whenever a plot row is written or deleted.
type PlotChangedEvent struct {
	PlotIDs    []string   `json:"plot_ids"`
	Status     PlotStatus `json:"status,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NotificationKind enumerates the outbound notifications.
type NotificationKind string

const (
	NotificationExhumationApproved  NotificationKind = "exhumation-approved"
	NotificationExhumationRejected  NotificationKind = "exhumation-rejected"
	NotificationReservationApproved NotificationKind = "reservation-approved"
	NotificationReservationRejected NotificationKind = "reservation-rejected"
)

// Notification is a single message addressed to a requester.
type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	Recipient string            `json:"recipient"`
	Payload   map[string]string `json:"payload"`
}
