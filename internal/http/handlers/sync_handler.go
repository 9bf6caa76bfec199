package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickshop/internal/log"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
	"quickshop/internal/services"
)

type SyncHandler struct {
	Sessions *services.SessionManager
	Mon      remote.Monitor
	Queue    *repos.QueueRepo
}

// Trigger runs a synchronous drain pass for the caller's scope and reports
// how many entries were confirmed.
func (h *SyncHandler) Trigger(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	synced, err := s.Syncer.Drain(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":  "cloud sync failed, data saved locally",
			"online": h.Mon.Online(),
		})
	}
	return c.JSON(fiber.Map{"synced": synced, "online": h.Mon.Online()})
}

// Status reports connectivity and queue depth for the caller's scope.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	view := s.Recorder.View()
	pending, err := h.Queue.Len(s.Scope)
	if err != nil {
		log.Error(c, "sync.status", err, nil)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{
		"online":   h.Mon.Online(),
		"lastSync": view.LastSync,
		"pending":  pending,
	})
}
