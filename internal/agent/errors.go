package agent

import "fmt"

type MissingAgentAssignmentError struct {
	ID string
}

func NewMissingAgentAssignmentError(id string) *MissingAgentAssignmentError {
	return &MissingAgentAssignmentError{ID: id}
}

func (e *MissingAgentAssignmentError) Error() string {
	return fmt.Sprintf("%s must have an agent assigned", e.ID)
}

type AgentNotFoundError struct {
	Name string
}

func NewAgentNotFoundError(name string) *AgentNotFoundError {
	return &AgentNotFoundError{Name: name}
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found", e.Name)
}

// RemoteExecutionError is a failed call on an agent. The remote message is kept verbatim.
type RemoteExecutionError struct {
	Agent      string
	StatusCode int
	Message    string
}

func NewRemoteExecutionError(agent string, statusCode int, message string) *RemoteExecutionError {
	return &RemoteExecutionError{Agent: agent, StatusCode: statusCode, Message: message}
}

func (e *RemoteExecutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("agent %s responded with status %d", e.Agent, e.StatusCode)
}
