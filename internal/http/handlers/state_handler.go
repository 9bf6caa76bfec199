package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickshop/internal/services"
)

type StateHandler struct {
	Sessions *services.SessionManager
}

// Get returns the full state view for the caller's scope. The UI renders
// from this; it never mutates it.
func (h *StateHandler) Get(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	return c.JSON(s.Recorder.View())
}

// Clear wipes the store for the caller's scope.
func (h *StateHandler) Clear(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	if err := s.Recorder.ClearStore(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// LoadDemo seeds the demo catalog into the caller's scope.
func (h *StateHandler) LoadDemo(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	if err := s.Recorder.LoadDemo(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.Recorder.View())
}
