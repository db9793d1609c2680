package models

// Requests for the scoring HTTP endpoints. Defined in domain for consistency and reuse.

type ScoreRequest struct {
	BeneficiaryID string                 `json:"beneficiary_id" validate:"required"`
	Attributes    map[string]interface{} `json:"attributes" validate:"required"`
	Trigger       string                 `json:"trigger" default:"new_application" validate:"oneof=new_application periodic_review manual_review"`
}

type SimulateRequest struct {
	BeneficiaryID     string                 `json:"beneficiary_id" validate:"required"`
	CurrentAttributes map[string]interface{} `json:"current_attributes" validate:"required"`
	CurrentScore      int                    `json:"current_score" validate:"required,gte=1"`
	Changes           map[string]interface{} `json:"changes"`
}

type SimulateResponse struct {
	CurrentScore   int     `json:"current_score"`
	ProjectedScore int     `json:"projected_score"`
	ScoreChange    int     `json:"score_change"`
	RiskCategory   string  `json:"risk_category"`
	Confidence     float64 `json:"confidence"`
	Explanation    string  `json:"explanation"`
	Degraded       bool    `json:"degraded"`
}

type OutcomeRequest struct {
	BeneficiaryID string                 `json:"beneficiary_id" validate:"required"`
	Attributes    map[string]interface{} `json:"attributes" validate:"required"`
	Creditworthy  *int                   `json:"creditworthy" validate:"required,gte=0,lte=1"`
}

type HistoryRequest struct {
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type RetrainRequest struct {
	Reason string `json:"reason" default:"manual" validate:"required"`
}
