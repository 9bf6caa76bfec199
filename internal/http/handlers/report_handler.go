package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickshop/internal/services"
	"quickshop/internal/validate"
)

type ReportHandler struct {
	Sessions *services.SessionManager
	Reports  *services.ReportService
}

func (h *ReportHandler) Report(c *fiber.Ctx) error {
	rng, ok := validate.ReportRange(c.Query("range"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "range must be daily, weekly or monthly"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	report, err := h.Reports.Build(s.Recorder.View(), rng)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

func (h *ReportHandler) Dashboard(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	return c.JSON(h.Reports.Dashboard(s.Recorder.View()))
}

func (h *ReportHandler) Insights(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	return c.JSON(h.Reports.BuildInsights(s.Recorder.View()))
}
