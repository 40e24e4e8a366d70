package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/services"
)

// RuleHandler handles rule collection requests
type RuleHandler struct {
	rules *services.RuleService
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules *services.RuleService) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// ReplaceAutoReplies bulk-replaces the session's auto-reply collection.
// Any invalid entry rejects the whole collection.
func (h *RuleHandler) ReplaceAutoReplies(c *fiber.Ctx) error {
	var rules []models.AutoReplyRule
	if err := c.BodyParser(&rules); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.rules.ReplaceAutoReplies(c.Params("id"), rules); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"count": len(rules)})
}

// GetAutoReplies returns the session's auto-reply collection.
func (h *RuleHandler) GetAutoReplies(c *fiber.Ctx) error {
	return c.JSON(h.rules.GetAutoReplies(c.Params("id")))
}

// ReplaceRegexTriggers bulk-replaces the session's regex triggers.
func (h *RuleHandler) ReplaceRegexTriggers(c *fiber.Ctx) error {
	var rules []models.RegexTrigger
	if err := c.BodyParser(&rules); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.rules.ReplaceRegexTriggers(c.Params("id"), rules); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"count": len(rules)})
}

// GetRegexTriggers returns the session's regex triggers.
func (h *RuleHandler) GetRegexTriggers(c *fiber.Ctx) error {
	return c.JSON(h.rules.GetRegexTriggers(c.Params("id")))
}

// ReplaceProRegexTriggers bulk-replaces the session's pro regex triggers.
func (h *RuleHandler) ReplaceProRegexTriggers(c *fiber.Ctx) error {
	var rules []models.ProRegexTrigger
	if err := c.BodyParser(&rules); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.rules.ReplaceProRegexTriggers(c.Params("id"), rules); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"count": len(rules)})
}

// GetProRegexTriggers returns the session's pro regex triggers.
func (h *RuleHandler) GetProRegexTriggers(c *fiber.Ctx) error {
	return c.JSON(h.rules.GetProRegexTriggers(c.Params("id")))
}
