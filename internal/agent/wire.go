package agent

// SecretHeader carries the shared agent secret on every controller request.
const SecretHeader = "X-Diw-Agent-Secret"

// Server-sent event names on the agent event stream.
const (
	EventAck              = "ack"
	EventContainerAdded   = "container-added"
	EventContainerUpdated = "container-updated"
	EventContainerRemoved = "container-removed"
)

// Ack is the first event sent on a new event stream.
type Ack struct {
	Version string `json:"version"`
}

// ComponentDescriptor describes a component registered on an agent.
type ComponentDescriptor struct {
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	Configuration map[string]any `json:"configuration"`
}

// ErrorResponse is the body of failed agent API calls.
type ErrorResponse struct {
	Error string `json:"error"`
}
