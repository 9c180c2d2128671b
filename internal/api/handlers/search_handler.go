package handlers

import (
	"finbuddy/internal/dto"
	"finbuddy/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SearchHandler struct {
	searchService *service.SearchService
	logger        *zap.Logger
}

func NewSearchHandler(searchService *service.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// Semantic answers a free-text query with the owner's most similar records.
func (h *SearchHandler) Semantic(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req dto.SemanticSearchRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing query"})
	}

	results, err := h.searchService.Search(c.Context(), userID, req.Query)
	if err != nil {
		h.logger.Error("Semantic search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Search failed"})
	}

	resp := dto.SemanticSearchResponse{Results: make([]dto.SemanticSearchResult, len(results))}
	for i, r := range results {
		resp.Results[i] = dto.SemanticSearchResult{
			Expense:    dto.NewExpenseResponse(r.Expense),
			Similarity: r.Similarity,
		}
	}
	return c.JSON(resp)
}
