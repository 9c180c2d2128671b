package dto

type SummaryResponse struct {
	Summary string `json:"summary"`
	Cached  bool   `json:"cached"`
}

type LatestSummaryResponse struct {
	Summary   string `json:"summary"`
	UpdatedAt string `json:"updated_at"`
}

type SmartSwitchResponse struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
	Savings   string `json:"savings,omitempty"`
}

type SetBudgetRequest struct {
	MonthlyBudget float64 `json:"monthly_budget"`
}
