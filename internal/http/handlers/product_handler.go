package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"quickshop/internal/services"
	"quickshop/internal/validate"
)

type ProductHandler struct {
	Sessions *services.SessionManager
}

type productForm struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Cost     float64 `json:"cost"`
	Qty      int     `json:"qty"`
	Category string  `json:"category"`
	Barcode  string  `json:"barcode"`
	Image    string  `json:"image"`
	Icon     string  `json:"icon"`
}

func (f *productForm) validate() (services.ProductInput, string, bool) {
	name, ok := validate.ProductName(f.Name)
	if !ok {
		return services.ProductInput{}, "product name is required", false
	}
	if msg, ok := validate.ProductNumbers(f.Price, f.Cost, f.Qty); !ok {
		return services.ProductInput{}, msg, false
	}
	barcode, ok := validate.Barcode(f.Barcode)
	if !ok {
		return services.ProductInput{}, "enter a valid barcode", false
	}
	return services.ProductInput{
		Name:     name,
		Price:    f.Price,
		Cost:     f.Cost,
		Qty:      f.Qty,
		Category: f.Category,
		Barcode:  barcode,
		Image:    f.Image,
		Icon:     f.Icon,
	}, "", true
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var form productForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	in, msg, ok := form.validate()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	p, err := s.Recorder.AddProduct(in)
	if err != nil {
		return productErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	var form productForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	in, msg, ok := form.validate()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	p, err := s.Recorder.UpdateProduct(id, in)
	if err != nil {
		return productErr(c, err)
	}
	return c.JSON(p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	if err := s.Recorder.RemoveProduct(id); err != nil {
		return productErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

type qtyForm struct {
	Qty int `json:"qty"`
}

func (h *ProductHandler) Sell(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	var form qtyForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	qty, ok := validate.Qty(form.Qty)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must be at least 1"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	sale, err := s.Recorder.Sell(id, qty)
	if err != nil {
		return productErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sale)
}

func (h *ProductHandler) Restock(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	var form qtyForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	qty, ok := validate.Qty(form.Qty)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must be at least 1"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	p, err := s.Recorder.Restock(id, qty)
	if err != nil {
		return productErr(c, err)
	}
	return c.JSON(p)
}

func (h *ProductHandler) Undo(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	s, err := session(c, h.Sessions)
	if err != nil {
		return err
	}
	what, err := s.Recorder.Undo(id)
	if err != nil {
		if errors.Is(err, services.ErrNothingToUndo) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return productErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "reverted": what})
}

func productErr(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrProductNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if errors.Is(err, services.ErrBarcodeTaken) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
