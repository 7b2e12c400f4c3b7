package harness

import (
	"time"

	"github.com/callwright/callwright/core/wire"
)

// OutcomeStatus classifies how a turn wait ended.
type OutcomeStatus string

const (
	// StatusResolved means a complete agent turn arrived and the settle
	// window passed.
	StatusResolved OutcomeStatus = "resolved"
	// StatusTimedOutPartial means the ceiling elapsed with frames buffered
	// but no complete turn; the best buffered frame stands in as the reply.
	StatusTimedOutPartial OutcomeStatus = "timed_out_partial"
	// StatusTimedOutEmpty means the ceiling elapsed without a single frame.
	StatusTimedOutEmpty OutcomeStatus = "timed_out_empty"
	// StatusSessionClosed means the server ended the session before the
	// agent produced a turn.
	StatusSessionClosed OutcomeStatus = "session_closed"
	// StatusError means the wait itself failed, usually transport death.
	StatusError OutcomeStatus = "error"
)

// Outcome is the result of waiting for one agent turn.
type Outcome struct {
	Status OutcomeStatus
	// Reply is the frame selected as the agent's reply, nil when none
	// qualified.
	Reply wire.Frame
	// Text is the agent's reply text: extracted from Reply, or recovered
	// from reply audio when a recognizer is configured.
	Text string
	// Frames holds every frame received during the wait, in arrival order.
	Frames []wire.Frame
	// CloseKind is the control kind that ended the session (StatusSessionClosed
	// only).
	CloseKind string
	// Err carries the wait failure (StatusError) or the session-closed
	// report (StatusSessionClosed).
	Err error

	Elapsed time.Duration
}

// Replied reports whether the wait produced any reply text.
func (o Outcome) Replied() bool { return o.Text != "" }
