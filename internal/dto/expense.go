package dto

import (
	"time"

	"finbuddy/internal/models"
)

type CreateExpenseRequest struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

type ExpenseResponse struct {
	ID          string                    `json:"id"`
	Amount      float64                   `json:"amount"`
	Category    string                    `json:"category"`
	Date        string                    `json:"date"`
	Description string                    `json:"description"`
	Status      string                    `json:"status"`
	OCRAttempts int                       `json:"ocr_attempts"`
	OCRText     string                    `json:"ocr_text,omitempty"`
	Extraction  *models.ReceiptExtraction `json:"extraction,omitempty"`
	CreatedAt   string                    `json:"created_at"`
}

func NewExpenseResponse(e *models.Expense) ExpenseResponse {
	resp := ExpenseResponse{
		ID:          e.ID.String(),
		Amount:      e.Amount,
		Category:    string(e.Category),
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		Status:      string(e.Status()),
		OCRAttempts: e.OCRAttempts,
		Extraction:  e.Extraction,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
	if e.OCRText != nil {
		resp.OCRText = *e.OCRText
	}
	return resp
}

type ExtractRequest struct {
	Mode   string `json:"mode"`
	Strict bool   `json:"strict"`
}

type ReceiptChatRequest struct {
	Question string `json:"question"`
}

type ReceiptChatResponse struct {
	Answer string `json:"answer"`
}

type OCRRunResponse struct {
	Outcome   string `json:"outcome"`
	ExpenseID string `json:"expense_id,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}
