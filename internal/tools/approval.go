package tools

import "encoding/json"

// Decision is the outcome of an approval request.
type Decision struct {
	// Approved permits the call to proceed.
	Approved bool
	// Comment is the reviewer's note. On rejection it is surfaced to the
	// model so it can adjust course instead of retrying blindly.
	Comment string
}

// Approver gates mutating tool calls in supervised mode. Implementations
// may block while waiting for a human.
type Approver interface {
	RequestApproval(name string, args json.RawMessage) (Decision, error)
}

// AutoApprover approves every call. It is the default in unattended runs.
type AutoApprover struct{}

// RequestApproval always permits the call.
func (AutoApprover) RequestApproval(string, json.RawMessage) (Decision, error) {
	return Decision{Approved: true}, nil
}
