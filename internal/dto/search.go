package dto

type SemanticSearchRequest struct {
	Query string `json:"query"`
}

type SemanticSearchResult struct {
	Expense    ExpenseResponse `json:"expense"`
	Similarity float64         `json:"similarity"`
}

type SemanticSearchResponse struct {
	Results []SemanticSearchResult `json:"results"`
}
