package handlers

import (
	"errors"

	"finbuddy/internal/dto"
	"finbuddy/internal/repository"
	"finbuddy/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PipelineHandler struct {
	ocrService        *service.OCRService
	extractionService *service.ExtractionService
	logger            *zap.Logger
}

func NewPipelineHandler(ocrService *service.OCRService, extractionService *service.ExtractionService, logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{
		ocrService:        ocrService,
		extractionService: extractionService,
		logger:            logger,
	}
}

// RunOCR performs one OCR stage invocation: claim at most one unprocessed
// receipt and attempt text extraction.
func (h *PipelineHandler) RunOCR(c *fiber.Ctx) error {
	result, err := h.ocrService.ProcessNext(c.Context())
	if err != nil {
		h.logger.Error("OCR stage failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "OCR processing failed"})
	}

	resp := dto.OCRRunResponse{Outcome: string(result.Outcome)}
	if result.Outcome != service.OCRRunIdle {
		resp.ExpenseID = result.ExpenseID.String()
		resp.Attempts = result.Attempts
	}
	return c.JSON(resp)
}

// Extract runs field extraction for one record, either from the stored OCR
// text or directly from the receipt image.
func (h *PipelineHandler) Extract(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid expense ID"})
	}

	req := dto.ExtractRequest{Mode: "image"}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	var extraction any
	switch req.Mode {
	case "image":
		extraction, err = h.extractionService.ExtractFromImage(c.Context(), userID, id)
	case "text":
		extraction, err = h.extractionService.ExtractFromText(c.Context(), userID, id, req.Strict)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Mode must be \"image\" or \"text\""})
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Expense not found"})
		case errors.Is(err, service.ErrNoReceipt), errors.Is(err, service.ErrNoOCRText):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidExtraction):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		default:
			h.logger.Error("Extraction failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Extraction failed"})
		}
	}

	return c.JSON(extraction)
}

// Chat answers a question about one extracted receipt.
func (h *PipelineHandler) Chat(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid expense ID"})
	}

	var req dto.ReceiptChatRequest
	if err := c.BodyParser(&req); err != nil || req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question is required"})
	}

	answer, err := h.extractionService.Chat(c.Context(), userID, id, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Expense not found"})
		case errors.Is(err, service.ErrNoExtraction):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Expense has no extracted receipt data yet"})
		default:
			h.logger.Error("Receipt chat failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Chat failed"})
		}
	}

	return c.JSON(dto.ReceiptChatResponse{Answer: answer})
}
