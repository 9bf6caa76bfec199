package handlers

import (
	"errors"
	"sort"

	"github.com/gofiber/fiber/v2"

	"quickshop/internal/domain"
	"quickshop/internal/services"
	"quickshop/internal/validate"
)

type NoteHandler struct {
	Sessions *services.SessionManager
}

type noteForm struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// List returns notes newest first.
func (h *NoteHandler) List(c *fiber.Ctx) error {
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	notes := append([]domain.Note(nil), s.Recorder.View().Notes...)
	sort.Slice(notes, func(i, j int) bool { return notes[i].TS > notes[j].TS })
	return c.JSON(notes)
}

func (h *NoteHandler) Create(c *fiber.Ctx) error {
	var form noteForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	title, ok := validate.NoteTitle(form.Title)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title too long"})
	}
	content, ok := validate.NoteContent(form.Content)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "please write something in the note"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	note, err := s.Recorder.AddNote(title, content)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

func (h *NoteHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid note id"})
	}
	var form noteForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	title, ok := validate.NoteTitle(form.Title)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title too long"})
	}
	content, ok := validate.NoteContent(form.Content)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "please write something in the note"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	note, err := s.Recorder.UpdateNote(id, title, content)
	if err != nil {
		return noteErr(c, err)
	}
	return c.JSON(note)
}

func (h *NoteHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid note id"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	if err := s.Recorder.RemoveNote(id); err != nil {
		return noteErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func noteErr(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrNoteNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "note not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
