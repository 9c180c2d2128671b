package handlers

import (
	"errors"
	"time"

	"finbuddy/internal/dto"
	"finbuddy/internal/repository"
	"finbuddy/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type InsightHandler struct {
	insightService *service.InsightService
	recService     *service.RecommendationService
	profiles       service.ProfileStore
	logger         *zap.Logger
}

func NewInsightHandler(insightService *service.InsightService, recService *service.RecommendationService, profiles service.ProfileStore, logger *zap.Logger) *InsightHandler {
	return &InsightHandler{
		insightService: insightService,
		recService:     recService,
		profiles:       profiles,
		logger:         logger,
	}
}

// BudgetProjection returns the deterministic month-end spending projection.
func (h *InsightHandler) BudgetProjection(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	projection, err := h.insightService.Project(c.Context(), userID, time.Now())
	if err != nil {
		h.logger.Error("Budget projection failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute projection"})
	}

	return c.JSON(projection)
}

// GenerateSummary produces (or serves from cache) the owner's narrative
// spending summary.
func (h *InsightHandler) GenerateSummary(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	result, err := h.insightService.GenerateSummary(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotEnoughData) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Not enough data to generate insights. Add at least 5 expense records."})
		}
		h.logger.Error("Summary generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate summary"})
	}

	return c.JSON(dto.SummaryResponse{Summary: result.Text, Cached: result.Cached})
}

// LatestSummary serves the per-owner latest summary slot.
func (h *InsightHandler) LatestSummary(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	latest, err := h.insightService.LatestSummary(c.Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No summary generated yet"})
	}
	if err != nil {
		h.logger.Error("Failed to load latest summary", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load summary"})
	}

	return c.JSON(dto.LatestSummaryResponse{
		Summary:   latest.SummaryText,
		UpdatedAt: latest.UpdatedAt.Format(time.RFC3339),
	})
}

// SmartSwitch returns one high-impact savings suggestion.
func (h *InsightHandler) SmartSwitch(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	suggestion, err := h.recService.Suggest(c.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidExtraction) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to generate suggestion"})
		}
		h.logger.Error("Smart switch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate suggestion"})
	}

	return c.JSON(dto.SmartSwitchResponse{
		Title:     suggestion.Title,
		Rationale: suggestion.Rationale,
		Savings:   suggestion.Savings,
	})
}

// SetBudget stores the owner's monthly budget ceiling.
func (h *InsightHandler) SetBudget(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req dto.SetBudgetRequest
	if err := c.BodyParser(&req); err != nil || req.MonthlyBudget <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "monthly_budget must be a positive number"})
	}

	if err := h.profiles.SetMonthlyBudget(c.Context(), userID, req.MonthlyBudget); err != nil {
		h.logger.Error("Failed to set budget", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to set budget"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
