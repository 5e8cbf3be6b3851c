// Package scheduler manages recurring agent tasks for the token ledger.
// Tasks carry a JSON instruction payload and an action type; due tasks are
// handed to an Executor, which is how ledger operations get driven on a
// schedule.
package scheduler

import (
	"encoding/json"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Built-in action types. Executors may support more; plugins register
// additional ones by action type.
const (
	ActionCustom        = "custom"
	ActionHTTPRequest   = "http_request"
	ActionTokenInit     = "token_init"
	ActionTokenTransfer = "token_transfer"
	ActionTokenMint     = "token_mint"
	ActionTokenBurn     = "token_burn"
)

// Task is a scheduled unit of work. Data holds a JSON instruction whose
// shape depends on ActionType; execution outcomes are merged back into it.
type Task struct {
	types.Entity

	ID         uint64       `json:"id"`
	Owner      id.Principal `json:"owner"`
	Data       string       `json:"data"`
	Frequency  uint64       `json:"frequency"` // seconds between runs
	LastRun    uint64       `json:"last_run"`  // unix seconds, zero when never run
	URL        string       `json:"url,omitempty"`
	ActionType string       `json:"action_type"`
	Enabled    bool         `json:"enabled"`
}

// Due reports whether the task should run at the given time. A task that
// never ran is always due.
func (t *Task) Due(now uint64) bool {
	return t.Enabled && (t.LastRun == 0 || now >= t.LastRun+t.Frequency)
}

// MergeStatus merges the given fields into the task's Data payload,
// preserving the original instruction keys. Unparseable Data is replaced by
// a fresh object.
func (t *Task) MergeStatus(fields map[string]string) {
	obj := make(map[string]json.RawMessage)
	_ = json.Unmarshal([]byte(t.Data), &obj) //nolint:errcheck // fall back to empty object
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		obj[k] = raw
	}
	merged, err := json.Marshal(obj)
	if err != nil {
		return
	}
	t.Data = string(merged)
}

// MarkSuccess records a successful run in the task data.
func (t *Task) MarkSuccess(extra map[string]string) {
	fields := map[string]string{"status": "success"}
	for k, v := range extra {
		fields[k] = v
	}
	t.MergeStatus(fields)
}

// MarkFailed records a failed run in the task data.
func (t *Task) MarkFailed(reason string) {
	t.MergeStatus(map[string]string{"status": "failed", "error": reason})
}

// UpdateArgs holds optional field updates for a task. Nil fields are left
// unchanged.
type UpdateArgs struct {
	Data       *string
	Frequency  *uint64
	URL        *string
	ActionType *string
	Enabled    *bool
}

// Execution is the record of one task run.
type Execution struct {
	TaskID uint64
	Action string
	Err    error
}
