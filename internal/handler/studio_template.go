package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// TemplateHandler exposes CRUD over class templates for the studio.
type TemplateHandler struct {
	Templates *repository.TemplateRepo
}

func NewTemplateHandler(t *repository.TemplateRepo) *TemplateHandler {
	if t == nil {
		panic("nil repository passed to NewTemplateHandler")
	}
	return &TemplateHandler{Templates: t}
}

type templateReq struct {
	Name              string `json:"name" validate:"required"`
	Category          string `json:"category" validate:"required"`
	Level             string `json:"level" validate:"required,oneof=beginner intermediate advanced all"`
	DurationMinutes   uint32 `json:"duration_minutes" validate:"required,min=5,max=480"`
	DefaultPriceCents int64  `json:"default_price_cents" validate:"min=0"`
	DefaultCapacity   uint32 `json:"default_capacity" validate:"required,min=1"`
}

// Create handles POST /v1/studio/templates.
func (h *TemplateHandler) Create(c echo.Context) error {
	var req templateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	id, err := h.Templates.Create(c.Request().Context(), &model.ClassTemplate{
		Name:              req.Name,
		Category:          strings.ToLower(strings.TrimSpace(req.Category)),
		Level:             req.Level,
		DurationMinutes:   req.DurationMinutes,
		DefaultPriceCents: req.DefaultPriceCents,
		DefaultCapacity:   req.DefaultCapacity,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create template"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// List handles GET /v1/studio/templates.
func (h *TemplateHandler) List(c echo.Context) error {
	templates, err := h.Templates.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list templates"})
	}
	return c.JSON(http.StatusOK, echo.Map{"templates": templates})
}

// Get handles GET /v1/studio/templates/:id.
func (h *TemplateHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	tpl, err := h.Templates.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrTemplateNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load template"})
	}
	return c.JSON(http.StatusOK, tpl)
}

// Update handles PUT /v1/studio/templates/:id.  Changed defaults only
// affect occurrences materialized afterwards.
func (h *TemplateHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	var req templateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	err = h.Templates.Update(c.Request().Context(), &model.ClassTemplate{
		ID:                id,
		Name:              strings.TrimSpace(req.Name),
		Category:          strings.ToLower(strings.TrimSpace(req.Category)),
		Level:             req.Level,
		DurationMinutes:   req.DurationMinutes,
		DefaultPriceCents: req.DefaultPriceCents,
		DefaultCapacity:   req.DefaultCapacity,
	})
	if err != nil {
		if err == repository.ErrTemplateNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update template"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /v1/studio/templates/:id.  Templates with live
// instances are protected by a RESTRICT foreign key.
func (h *TemplateHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	err = h.Templates.Delete(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrTemplateNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		if strings.Contains(strings.ToLower(err.Error()), "1451") { // FK restrict
			return c.JSON(http.StatusConflict, echo.Map{"error": "template has scheduled classes"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete template"})
	}
	return c.NoContent(http.StatusNoContent)
}
