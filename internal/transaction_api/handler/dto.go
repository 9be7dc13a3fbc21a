package handler

// StartSagaResponse acknowledges an accepted saga start. WorkflowID is the
// deterministic saga id derived from the operation fields; RunID identifies
// this particular execution of it.
type StartSagaResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// SagaStatusResponse is the durable view of a saga instance
type SagaStatusResponse struct {
	ID                  string `json:"id"`
	RunID               string `json:"run_id"`
	ProfileID           int64  `json:"profile_id"`
	ExternalOperationID string `json:"external_operation_id"`
	OperationType       string `json:"operation_type"`
	State               string `json:"state"`
	Result              string `json:"result,omitempty"`
	MovementsApplied    int    `json:"movements_applied"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// SignalRequest carries an external payment provider confirmation
type SignalRequest struct {
	ExternalOperationID string `json:"external_operation_id" binding:"required"`
	OperationType       string `json:"operation_type" binding:"required"`
	Success             bool   `json:"success"`
	Message             string `json:"message"`
}
