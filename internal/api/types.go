// Package api defines the HTTP wire types.
package api

import "encoding/json"

// SubmitWorkRequest creates a work item.
type SubmitWorkRequest struct {
	Kind  string          `json:"kind"`
	Input json.RawMessage `json:"input"`
}

// SubmitWorkResponse acknowledges a submission. The caller polls the work
// item for its terminal state; execution errors never surface here.
type SubmitWorkResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateBanditRequest creates a bandit experiment with a fixed arm set.
// Provide either ArmLabels or NumArms.
type CreateBanditRequest struct {
	Name      string   `json:"name,omitempty"`
	NumArms   int      `json:"num_arms,omitempty"`
	ArmLabels []string `json:"arm_labels,omitempty"`
}

// PickRequest asks for a decision.
type PickRequest struct {
	Policy  string   `json:"policy"`
	Epsilon *float64 `json:"epsilon,omitempty"`
}

// PickResponse carries the chosen arm.
type PickResponse struct {
	ArmID  string `json:"arm_id"`
	Policy string `json:"policy"`
}

// RewardRequest logs a reward for an arm.
type RewardRequest struct {
	ArmID  string   `json:"arm_id"`
	Reward *float64 `json:"reward"`
}

// OKResponse is the generic success acknowledgment.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
