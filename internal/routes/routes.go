package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wagate/wagate-backend/internal/handlers"
	"github.com/wagate/wagate-backend/internal/middleware"
	"github.com/wagate/wagate-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, registry *services.SessionRegistry, rules *services.RuleService, version string) {
	sessionHandler := handlers.NewSessionHandler(registry)
	ruleHandler := handlers.NewRuleHandler(rules)
	healthHandler := handlers.NewHealthHandler(version, registry)

	app.Get("/health", healthHandler.Check)

	// Session creation sets the key; everything below it requires it.
	app.Post("/session/:id", sessionHandler.Create)

	session := app.Group("/session/:id", middleware.RequireSessionKey())
	session.Get("/qr", sessionHandler.QR)
	session.Get("/status", sessionHandler.Status)
	session.Post("/sendText", sessionHandler.SendText)
	session.Delete("/", sessionHandler.Delete)

	session.Post("/autoReplies", ruleHandler.ReplaceAutoReplies)
	session.Get("/autoReplies", ruleHandler.GetAutoReplies)
	session.Post("/regexTriggers", ruleHandler.ReplaceRegexTriggers)
	session.Get("/regexTriggers", ruleHandler.GetRegexTriggers)
	session.Post("/regexTriggersPro", ruleHandler.ReplaceProRegexTriggers)
	session.Get("/regexTriggersPro", ruleHandler.GetProRegexTriggers)
}
