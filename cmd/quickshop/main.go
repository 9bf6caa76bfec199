package main

import (
	"context"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quickshop/internal/config"
	"quickshop/internal/domain"
	"quickshop/internal/http/handlers"
	applog "quickshop/internal/log"
	"quickshop/internal/remote"
	"quickshop/internal/repos"
	"quickshop/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	queue := repos.NewQueueRepo(db)
	snapshots := repos.NewSnapshotRepo(db)

	// The remote document store is an in-process stand-in until a real cloud
	// backend is wired behind the DocStore interface.
	store := remote.NewMemStore()
	mon := remote.NewManualMonitor(cfg.StartOnline)

	sessions := services.NewSessionManager(snapshots, queue, store, mon)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "something went wrong, please try again",
			})
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// ---------- App handlers ----------
	deps := handlers.NewDeps(sessions, mon, queue)

	api := app.Group("/api/v1")

	api.Get("/state", deps.StateHandler.Get)
	api.Delete("/state", deps.StateHandler.Clear)
	api.Post("/state/demo", deps.StateHandler.LoadDemo)

	api.Post("/products", deps.ProductHandler.Create)
	api.Put("/products/:id", deps.ProductHandler.Update)
	api.Delete("/products/:id", deps.ProductHandler.Delete)
	api.Post("/products/:id/sell", deps.ProductHandler.Sell)
	api.Post("/products/:id/restock", deps.ProductHandler.Restock)
	api.Post("/products/:id/undo", deps.ProductHandler.Undo)

	api.Get("/notes", deps.NoteHandler.List)
	api.Post("/notes", deps.NoteHandler.Create)
	api.Put("/notes/:id", deps.NoteHandler.Update)
	api.Delete("/notes/:id", deps.NoteHandler.Delete)

	api.Get("/reports", deps.ReportHandler.Report)
	api.Get("/dashboard", deps.ReportHandler.Dashboard)
	api.Get("/insights", deps.ReportHandler.Insights)

	api.Post("/sync", deps.SyncHandler.Trigger)
	api.Get("/sync/status", deps.SyncHandler.Status)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Dev-only connectivity toggle for the manual monitor. Flipping offline
	// lets a tester exercise the queue-and-drain path end to end.
	app.Post("/dev/connectivity", func(c *fiber.Ctx) error {
		online, err := strconv.ParseBool(c.Query("online"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "online must be true or false")
		}
		mon.SetOnline(online)
		applog.Audit(c, "dev.connectivity", map[string]any{"online": online})
		return c.JSON(fiber.Map{"online": online})
	})

	// ---------- Background sync triggers ----------
	time.AfterFunc(cfg.SyncStartupDelay, sessions.KickAll)
	go func() {
		tick := time.NewTicker(cfg.SyncInterval)
		defer tick.Stop()
		for range tick.C {
			sessions.KickAll()
		}
	}()
	go func() {
		for online := range mon.Subscribe() {
			if online {
				applog.Info(nil, "sync.connectivity.restored", nil)
				sessions.KickAll()
			}
		}
	}()

	if cfg.SeedDemo {
		seedDemo(sessions)
	}

	log.Printf("[boot] quickshop listening on :%s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// seedDemo fills the anonymous scope with sample inventory so a fresh checkout
// has something on the shelf.
func seedDemo(sessions *services.SessionManager) {
	s, err := sessions.Get(context.Background(), domain.AnonymousScope)
	if err != nil {
		log.Printf("[warn] demo seed: %v", err)
		return
	}
	if len(s.Recorder.View().Products) > 0 {
		return
	}
	if err := s.Recorder.LoadDemo(); err != nil {
		log.Printf("[warn] demo seed: %v", err)
	}
}
