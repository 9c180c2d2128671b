package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryFood      Category = "Food"
	CategoryTransport Category = "Transport"
	CategoryShopping  Category = "Shopping"
	CategoryBills     Category = "Bills"
	CategoryHealth    Category = "Health"
	CategoryTravel    Category = "Travel"
	CategoryOther     Category = "Other"
)

// Categories lists every valid expense category.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryBills,
	CategoryHealth,
	CategoryTravel,
	CategoryOther,
}

// ParseCategory normalizes a raw category string into one of the closed set.
// Returns false when the value does not match any known category.
func ParseCategory(raw string) (Category, bool) {
	normalized := strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(normalized, string(c)) {
			return c, true
		}
	}
	return "", false
}

// MaxOCRAttempts bounds soft OCR failures per receipt. Once the counter
// reaches this value the record is permanently ineligible for selection.
const MaxOCRAttempts = 3

type ExpenseStatus string

const (
	// StatusManual marks records entered by hand, with no receipt to process.
	StatusManual ExpenseStatus = "manual"
	// StatusUnprocessed marks receipts still waiting for OCR.
	StatusUnprocessed ExpenseStatus = "unprocessed"
	// StatusOcrComplete marks receipts with text but no structured fields yet.
	StatusOcrComplete ExpenseStatus = "ocr_complete"
	// StatusExtractionComplete marks fully structured records.
	StatusExtractionComplete ExpenseStatus = "extraction_complete"
	// StatusExhausted marks receipts that failed OCR MaxOCRAttempts times.
	StatusExhausted ExpenseStatus = "exhausted"
)

type ReceiptItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ReceiptExtraction is the structured result of LLM field extraction.
// Pointer fields may be nil in strict extraction mode, where the model is
// told to return null rather than guess.
type ReceiptExtraction struct {
	Amount      *float64      `json:"amount"`
	Category    string        `json:"category"`
	Date        string        `json:"date"`
	Description string        `json:"description"`
	StoreName   string        `json:"store_name,omitempty"`
	Items       []ReceiptItem `json:"items,omitempty"`
}

type Expense struct {
	ID          uuid.UUID          `db:"id"`
	UserID      uuid.UUID          `db:"user_id"`
	Amount      float64            `db:"amount"`
	Category    Category           `db:"category"`
	Date        time.Time          `db:"date"`
	Description string             `db:"description"`
	ReceiptPath *string            `db:"receipt_path"`
	OCRText     *string            `db:"ocr_text"`
	Extraction  *ReceiptExtraction `db:"ocr_parsed"`
	Embedding   []float32          `db:"embedding"`
	OCRAttempts int                `db:"ocr_attempts"`
	ClaimedAt   *time.Time         `db:"claimed_at"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

// Status derives the pipeline state from the record's fields. It is never
// stored; the selection predicates in the repository encode the same rules.
func (e *Expense) Status() ExpenseStatus {
	if e.ReceiptPath == nil {
		return StatusManual
	}
	if e.Extraction != nil {
		return StatusExtractionComplete
	}
	if e.OCRText != nil && *e.OCRText != "" {
		return StatusOcrComplete
	}
	if e.OCRAttempts >= MaxOCRAttempts {
		return StatusExhausted
	}
	return StatusUnprocessed
}
