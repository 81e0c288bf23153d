package relay

// Outcome is what happened to one outbound domain event.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeQueued  Outcome = "queued"
	OutcomeFlushed Outcome = "flushed"
	OutcomeLost    Outcome = "lost"
)

// Observer receives relay activity for mirroring and telemetry. Calls are
// made synchronously from the relay's goroutines and must not block.
type Observer interface {
	StateChanged(tenantID string, state ConnectionState)
	Delivered(tenantID string, dataType DataType, outcome Outcome)
	Received(tenantID string, ev Inbound)
}

// Observers fans out to each non-nil observer in order.
type Observers []Observer

func (o Observers) StateChanged(tenantID string, state ConnectionState) {
	for _, obs := range o {
		if obs != nil {
			obs.StateChanged(tenantID, state)
		}
	}
}

func (o Observers) Delivered(tenantID string, dataType DataType, outcome Outcome) {
	for _, obs := range o {
		if obs != nil {
			obs.Delivered(tenantID, dataType, outcome)
		}
	}
}

func (o Observers) Received(tenantID string, ev Inbound) {
	for _, obs := range o {
		if obs != nil {
			obs.Received(tenantID, ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) StateChanged(string, ConnectionState) {}
func (nopObserver) Delivered(string, DataType, Outcome)  {}
func (nopObserver) Received(string, Inbound)             {}
