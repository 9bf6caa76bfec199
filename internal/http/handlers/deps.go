package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickshop/internal/domain"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
	"quickshop/internal/services"
	"quickshop/internal/validate"
)

type Deps struct {
	Sessions *services.SessionManager

	StateHandler   *StateHandler
	ProductHandler *ProductHandler
	NoteHandler    *NoteHandler
	ReportHandler  *ReportHandler
	SyncHandler    *SyncHandler
}

func NewDeps(sessions *services.SessionManager, mon remote.Monitor, queue *repos.QueueRepo) *Deps {
	reports := services.NewReportService()
	return &Deps{
		Sessions:       sessions,
		StateHandler:   &StateHandler{Sessions: sessions},
		ProductHandler: &ProductHandler{Sessions: sessions},
		NoteHandler:    &NoteHandler{Sessions: sessions},
		ReportHandler:  &ReportHandler{Sessions: sessions, Reports: reports},
		SyncHandler:    &SyncHandler{Sessions: sessions, Mon: mon, Queue: queue},
	}
}

// scope resolves the caller's scope key: an authenticated user id on the
// X-User-ID header, otherwise the shared anonymous scope. Sign-in itself is
// the auth collaborator's job; by the time requests land here the id is
// trusted.
func scope(c *fiber.Ctx) (string, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return domain.AnonymousScope, nil
	}
	s, ok := validate.Scope(raw)
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid X-User-ID")
	}
	return s, nil
}

func session(c *fiber.Ctx, m *services.SessionManager) (*services.Session, error) {
	sc, err := scope(c)
	if err != nil {
		return nil, err
	}
	return m.Get(c.Context(), sc)
}
