// This file defines handlers for the public browsing API.  These
// routes let unauthenticated visitors browse the class catalog and the
// upcoming schedule.  Responses carry only safe fields; counters are
// reduced to a spots_left number.
package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// PublicHandler aggregates repositories needed for unauthenticated
// browsing.
type PublicHandler struct {
	Templates   *repository.TemplateRepo
	Occurrences *repository.OccurrenceRepo
}

// NewPublicHandler wires the browse endpoints.
func NewPublicHandler(t *repository.TemplateRepo, o *repository.OccurrenceRepo) *PublicHandler {
	return &PublicHandler{Templates: t, Occurrences: o}
}

// PublicTemplate is a class style as exposed publicly.
type PublicTemplate struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Level           string `json:"level"`
	DurationMinutes uint32 `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

// PublicOccurrence is one bookable class event.
type PublicOccurrence struct {
	ID         uint64    `json:"id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	PriceCents int64     `json:"price_cents"`
	SpotsLeft  int64     `json:"spots_left"`
	Waitlist   uint32    `json:"waitlist"`
}

// GetClasses handles GET /v1/classes: the public catalog of class
// styles.
func (h *PublicHandler) GetClasses(c echo.Context) error {
	templates, err := h.Templates.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicTemplate, 0, len(templates))
	for _, t := range templates {
		out = append(out, PublicTemplate{
			ID:              t.ID,
			Name:            t.Name,
			Category:        t.Category,
			Level:           t.Level,
			DurationMinutes: t.DurationMinutes,
			PriceCents:      t.DefaultPriceCents,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetClassSchedule handles GET /v1/classes/:id/schedule: upcoming
// occurrences of one class style.  This route sits behind the response
// cache middleware; the schedule changes far less often than it is
// read.
func (h *PublicHandler) GetClassSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid class id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Templates.GetByID(ctx, id); err != nil {
		if err == repository.ErrTemplateNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	occs, err := h.Occurrences.ListUpcomingByTemplate(ctx, id, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicOccurrence, 0, len(occs))
	for _, o := range occs {
		out = append(out, PublicOccurrence{
			ID:         o.ID,
			StartTime:  o.StartTime,
			EndTime:    o.EndTime,
			PriceCents: o.PriceCents,
			SpotsLeft:  int64(o.Capacity) - int64(o.BookedCount),
			Waitlist:   o.WaitlistCount,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetSchedule handles GET /v1/schedule?from=...&to=...: every SCHEDULED
// occurrence in a window, defaulting to the next seven days.
func (h *PublicHandler) GetSchedule(c echo.Context) error {
	now := time.Now().UTC()
	from, to := now, now.AddDate(0, 0, 7)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
		}
		to = t.AddDate(0, 0, 1) // inclusive end date
	}
	if !to.After(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be after from"})
	}
	occs, err := h.Occurrences.ListScheduledBetween(c.Request().Context(), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicOccurrence, 0, len(occs))
	for _, o := range occs {
		if o.Status != model.OccurrenceScheduled {
			continue
		}
		out = append(out, PublicOccurrence{
			ID:         o.ID,
			StartTime:  o.StartTime,
			EndTime:    o.EndTime,
			PriceCents: o.PriceCents,
			SpotsLeft:  int64(o.Capacity) - int64(o.BookedCount),
			Waitlist:   o.WaitlistCount,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
