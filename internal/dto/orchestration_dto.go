package dto

type OrchestrateRequest struct {
	Request string `json:"request" validate:"required"`
	ChatId  string `json:"chat_id"`
}

type OrchestrateAsyncRequest struct {
	Content string `json:"content" validate:"required"`
	ChatId  string `json:"chat_id" validate:"required"`
}

type OrchestrateAsyncResponse struct {
	JobId  string `json:"job_id"`
	Status string `json:"status"`
}

type RejectSessionRequest struct {
	Reason string `json:"reason"`
}

type ApprovalResponse struct {
	SessionId string `json:"session_id"`
	Status    string `json:"status"`
}

type ParallelDispatchRequest struct {
	Message string   `json:"message" validate:"required"`
	Models  []string `json:"models" validate:"required,min=1,dive,required"`
}
