package session

import (
	"strings"

	"tasqsym/bt"
	"tasqsym/config"
	"tasqsym/model"
)

// SetupCommand is the `setup` control-channel message of spec.md §6.
type SetupCommand struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Content config.Document `json:"content"`
}

// RunCommand is the `run` control-channel message of spec.md §6.
// NodePointer is the `start_from_node_id` path (empty runs from the
// root).
type RunCommand struct {
	ID          string      `json:"id"`
	Command     string      `json:"command"`
	Content     bt.Document `json:"content"`
	NodePointer []int       `json:"node_pointer"`
}

// AbortCommand is the `abort` control-channel message of spec.md §6.
type AbortCommand struct {
	ID        string `json:"id"`
	Command   string `json:"command"`
	Emergency bool   `json:"emergency"`
}

// StatusInfo is the `status` field of a Response.
type StatusInfo struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// NodeLog is the `logs` field of a Response: the interpreter's
// last-executed-node telemetry (spec.md §4.G, §4.I).
type NodeLog struct {
	NodeName    string `json:"node_name"`
	NodePointer []int  `json:"node_pointer"`
}

// Response is the core -> client reply shape of spec.md §6.
type Response struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"` // "response" | "abort"
	Completion bool     `json:"completion"`
	Status     StatusInfo `json:"status"`
	Logs       *NodeLog `json:"logs,omitempty"`
}

const (
	responseTypeResponse = "response"
	responseTypeAbort    = "abort"
)

// statusResponse builds the completion/error reply for a `status`,
// echoing id and kind (spec.md §6, §7's error-code taxonomy).
func statusResponse(id, respType string, status model.Status, telemetry *NodeLog) Response {
	return Response{
		ID:         id,
		Type:       respType,
		Completion: status.Ok(),
		Status: StatusInfo{
			ErrorCode: strings.ToUpper(string(status.Kind)),
			Message:   status.Message,
		},
		Logs: telemetry,
	}
}
