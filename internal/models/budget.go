package models

// BudgetProjection is a derived value computed fresh from the current month's
// records; it is never persisted.
type BudgetProjection struct {
	TotalSpent    float64 `json:"total_spent"`
	Budget        float64 `json:"budget"`
	Velocity      float64 `json:"velocity"`
	Projection    float64 `json:"projection"`
	Percentage    float64 `json:"percentage"`
	IsOverBudget  bool    `json:"is_over_budget"`
	DaysRemaining int     `json:"days_remaining"`
}
