package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wagate/wagate-backend/internal/services"
	"github.com/wagate/wagate-backend/internal/utils"
)

// SessionHandler handles session lifecycle requests
type SessionHandler struct {
	registry *services.SessionRegistry

	// qrWait bounds how long a QR poll blocks before 408.
	qrWait time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *services.SessionRegistry) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		qrWait:   45 * time.Second,
	}
}

type createSessionPayload struct {
	APIKey string `json:"apiKey"`
}

// Create registers a session and its API key. Calling it again overwrites
// the key without disturbing a live connection.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var payload createSessionPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if payload.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "apiKey is required",
		})
	}

	sessionID := c.Params("id")
	if err := h.registry.Create(sessionID, payload.APIKey); err != nil {
		log.Printf("❌ Failed to create session %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"status":     h.registry.Status(sessionID),
	})
}

// QR starts pairing if needed and blocks until a pairing code or a live
// connection shows up, else 408.
func (h *SessionHandler) QR(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	if err := h.registry.Start(sessionID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	connected, code, err := h.registry.WaitForPairing(c.Context(), sessionID, h.qrWait)
	if err != nil {
		return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
			"error": "Timed out waiting for pairing code",
		})
	}
	if connected {
		return c.JSON(fiber.Map{"connected": true})
	}

	dataURL, err := services.RenderQRDataURL(code)
	if err != nil {
		log.Printf("❌ QR render failed for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not render QR",
		})
	}

	return c.JSON(fiber.Map{
		"connected": false,
		"qr":        dataURL,
	})
}

// Status reports whether the session is connected.
func (h *SessionHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected": h.registry.Connected(c.Params("id")),
	})
}

type sendTextPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SendText sends an outbound message on a connected session.
func (h *SessionHandler) SendText(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	var payload sendTextPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if !h.registry.Connected(sessionID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Session not connected",
		})
	}

	jid, err := utils.ToJID(payload.To)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid phone number",
		})
	}

	if err := h.registry.SendText(c.Context(), sessionID, jid, payload.Text); err != nil {
		log.Printf("❌ sendText failed for %s: %v", sessionID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not send message",
		})
	}

	return c.JSON(fiber.Map{"sent": true})
}

// Delete terminates the session and wipes everything it owned.
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	if err := h.registry.Stop(sessionID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"deleted": true})
}
