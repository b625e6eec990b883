package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/booking"
	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// BookingHandler lets customers register for occurrences, join
// waitlists, confirm promotions and view their own registrations.
type BookingHandler struct {
	Booking       *booking.Service
	Registrations *repository.RegistrationRepo
	Occurrences   *repository.OccurrenceRepo
}

func NewBookingHandler(b *booking.Service, reg *repository.RegistrationRepo, occ *repository.OccurrenceRepo) *BookingHandler {
	if b == nil || reg == nil || occ == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Booking: b, Registrations: reg, Occurrences: occ}
}

type bookReq struct {
	PaymentRef         string `json:"payment_ref"`
	JoinWaitlist       bool   `json:"join_waitlist"`
	AutoPromote        bool   `json:"auto_promote"`
	PaymentCaptureMode string `json:"payment_capture_mode" validate:"omitempty,oneof=IMMEDIATE WINDOW"`
	PaymentWindowHours uint32 `json:"payment_window_hours" validate:"omitempty,min=1,max=72"`
}

// Book handles POST /v1/occurrences/:id/register.  When the class is
// full and join_waitlist is set, the customer is queued instead and the
// response carries their position.
func (h *BookingHandler) Book(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	occID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	opts := booking.WaitlistOptions{
		Join:               req.JoinWaitlist,
		AutoPromote:        req.AutoPromote,
		PaymentCaptureMode: req.PaymentCaptureMode,
		PaymentWindowHours: req.PaymentWindowHours,
	}
	if opts.Join {
		if opts.PaymentCaptureMode == "" {
			opts.PaymentCaptureMode = model.CaptureWindow
		}
		if !opts.AutoPromote && opts.PaymentWindowHours == 0 {
			opts.PaymentWindowHours = 24
		}
	}
	var paymentRef *string
	if ref := strings.TrimSpace(req.PaymentRef); ref != "" {
		paymentRef = &ref
	}

	res, err := h.Booking.BookSeat(c.Request().Context(), occID, userID, paymentRef, opts)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOccurrenceNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "occurrence not found"})
		case errors.Is(err, booking.ErrOccurrenceNotBookable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "occurrence is not open for booking"})
		case errors.Is(err, repository.ErrCapacityExceeded):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is full"})
		case errors.Is(err, repository.ErrAlreadyRegistered):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already registered for this class"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}

	if res.Waitlisted {
		return c.JSON(http.StatusAccepted, echo.Map{
			"registration_id":   res.RegistrationID,
			"waitlisted":        true,
			"waitlist_position": res.WaitlistPosition,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"registration_id": res.RegistrationID,
		"waitlisted":      false,
	})
}

// ConfirmPromotion handles POST /v1/waitlist/:id/confirm.  A promoted
// customer confirms (and pays for) the seat held for them before their
// payment window closes.
func (h *BookingHandler) ConfirmPromotion(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entryID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid waitlist entry id"})
	}
	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	_ = c.Bind(&body)
	var paymentRef *string
	if ref := strings.TrimSpace(body.PaymentRef); ref != "" {
		paymentRef = &ref
	}

	err = h.Booking.ConfirmPromotion(c.Request().Context(), entryID, userID, paymentRef)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"confirmed": true})
	case errors.Is(err, repository.ErrWaitlistEntryNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "waitlist entry not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your waitlist entry"})
	case errors.Is(err, booking.ErrPromotionWindowClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment window has closed"})
	case errors.Is(err, repository.ErrStaleTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "entry is not awaiting confirmation"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
}

// MyRegistrations handles GET /v1/me/registrations.
func (h *BookingHandler) MyRegistrations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	regs, err := h.Registrations.ListByCustomer(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list registrations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"registrations": regs})
}
