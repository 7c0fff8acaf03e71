// Package dispatch splits import tasks across remote worker nodes over
// HTTP RPC, falling back to local orchestration for unhealthy nodes.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"candleflow/internal/orchestrator"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaID versions the node RPC payloads. A node reporting a different
// id is rejected gracefully instead of crashing the dispatcher.
const SchemaID = "candleflow/node-rpc/v1"

// ExecuteRequest is the sub-task sent to a worker node.
type ExecuteRequest struct {
	SchemaID       string    `json:"schema_id"`
	TaskID         string    `json:"task_id"`
	Symbols        []string  `json:"symbols"`
	Mode           string    `json:"mode"`
	Frequency      string    `json:"frequency"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	MaxConcurrency int       `json:"max_concurrency,omitempty"`
}

// ExecuteResponse carries the per-symbol results of a sub-task.
type ExecuteResponse struct {
	SchemaID    string                      `json:"schema_id"`
	TaskID      string                      `json:"task_id"`
	Status      string                      `json:"status"`
	Results     []orchestrator.SymbolResult `json:"results"`
	Records     int64                       `json:"records"`
	DroppedRows int                         `json:"dropped_rows"`
	Error       string                      `json:"error,omitempty"`
}

// HealthResponse is the heartbeat probe payload.
type HealthResponse struct {
	SchemaID      string    `json:"schema_id"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	RunningTasks  int       `json:"running_tasks"`
}

const executeRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "candleflow/node-rpc/v1/execute-request",
  "type": "object",
  "required": ["schema_id", "task_id", "symbols", "mode", "frequency", "start", "end"],
  "properties": {
    "schema_id": {"const": "candleflow/node-rpc/v1"},
    "task_id": {"type": "string", "minLength": 1},
    "symbols": {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1},
    "mode": {"enum": ["full", "incremental", "smart_fill", "gap_fill"]},
    "frequency": {"type": "string", "minLength": 2},
    "start": {"type": "string", "format": "date-time"},
    "end": {"type": "string", "format": "date-time"},
    "max_concurrency": {"type": "integer", "minimum": 0}
  }
}`

var executeSchema = jsonschema.MustCompileString("execute-request.json", executeRequestSchema)

// ValidateExecutePayload checks an incoming execute body against the
// versioned schema before any of it is trusted.
func ValidateExecutePayload(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("malformed execute payload: %w", err)
	}
	if err := executeSchema.Validate(doc); err != nil {
		return fmt.Errorf("execute payload rejected: %w", err)
	}
	return nil
}
