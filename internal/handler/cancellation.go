package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/refund"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// CancellationHandler covers both sides of a cancellation: customers
// submit requests against their own registrations; the studio cancels
// whole occurrences, approves, rejects and processes.
type CancellationHandler struct {
	Cancellations *repository.CancellationRepo
	Registrations *repository.RegistrationRepo
	Occurrences   *repository.OccurrenceRepo
	Templates     *repository.TemplateRepo
	Policies      *repository.PolicyRepo
	Orchestrator  *refund.Orchestrator
}

func NewCancellationHandler(ca *repository.CancellationRepo, reg *repository.RegistrationRepo, occ *repository.OccurrenceRepo, tpl *repository.TemplateRepo, pol *repository.PolicyRepo, orch *refund.Orchestrator) *CancellationHandler {
	if ca == nil || reg == nil || occ == nil || tpl == nil || pol == nil || orch == nil {
		panic("nil dependency passed to NewCancellationHandler")
	}
	return &CancellationHandler{
		Cancellations: ca,
		Registrations: reg,
		Occurrences:   occ,
		Templates:     tpl,
		Policies:      pol,
		Orchestrator:  orch,
	}
}

// Submit handles POST /v1/registrations/:id/cancel.  A customer opens a
// cancellation request against their own CONFIRMED registration; the
// request waits in PENDING until the studio approves it.
func (h *CancellationHandler) Submit(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	regID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid registration id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)

	ctx := c.Request().Context()
	reg, err := h.Registrations.GetByID(ctx, regID)
	if err != nil {
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "registration not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load registration"})
	}
	if reg.CustomerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your registration"})
	}
	if reg.Status != model.RegistrationConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "registration cannot be cancelled"})
	}
	existing, err := h.Cancellations.ListByOccurrence(ctx, reg.OccurrenceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check existing requests"})
	}
	for _, r := range existing {
		if r.RegistrationID != nil && *r.RegistrationID == regID &&
			r.Status != model.RequestRejected {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":      "cancellation already requested",
				"request_id": r.ID,
			})
		}
	}

	id, err := h.Cancellations.Create(ctx, &model.CancellationRequest{
		OccurrenceID:   reg.OccurrenceID,
		RegistrationID: &regID,
		Initiator:      model.InitiatorCustomer,
		Reason:         strings.TrimSpace(body.Reason),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create request"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"request_id": id, "status": model.RequestPending})
}

// CancelOccurrence handles POST /v1/studio/occurrences/:id/cancel.  The
// occurrence is closed in one transaction together with one refund
// request per confirmed seat; non-customer initiators entitle every
// customer to a full refund regardless of timing.  The fan-out only
// opens the requests; approval and processing follow separately so a
// gateway outage cannot hold the occurrence transition hostage.
func (h *CancellationHandler) CancelOccurrence(c echo.Context) error {
	occID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	var body struct {
		Initiator string `json:"initiator"`
		Reason    string `json:"reason" validate:"required"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	initiator := strings.ToUpper(strings.TrimSpace(body.Initiator))
	switch initiator {
	case model.InitiatorInstructor, model.InitiatorWeather, model.InitiatorEmergency:
	default:
		initiator = model.InitiatorStudio
	}
	if strings.TrimSpace(body.Reason) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}
	ctx := c.Request().Context()

	tx, err := h.Occurrences.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Occurrences.TransitionStatusTx(ctx, tx, occID, model.OccurrenceScheduled, model.OccurrenceCancelled); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "occurrence is not scheduled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel occurrence"})
	}
	confirmed, err := h.Registrations.ListConfirmedByOccurrenceTx(ctx, tx, occID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load registrations"})
	}
	requestIDs := make([]string, 0, len(confirmed))
	for _, reg := range confirmed {
		regID := reg.ID
		id, err := h.Cancellations.CreateTx(ctx, tx, &model.CancellationRequest{
			OccurrenceID:   occID,
			RegistrationID: &regID,
			Initiator:      initiator,
			Reason:         strings.TrimSpace(body.Reason),
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to open refund requests"})
		}
		requestIDs = append(requestIDs, id)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{
		"occurrence_id": occID,
		"cancelled":     true,
		"refunds":       len(requestIDs),
		"request_ids":   requestIDs,
	})
}

// Approve handles POST /v1/studio/cancellations/:id/approve.  The
// refund split is computed here, against the policy and the hours
// remaining at this moment, and persisted with the APPROVED state.
func (h *CancellationHandler) Approve(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	ctx := c.Request().Context()

	req, err := h.Cancellations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCancellationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load request"})
	}
	occ, err := h.Occurrences.GetByID(ctx, req.OccurrenceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load occurrence"})
	}
	tpl, err := h.Templates.GetByID(ctx, occ.TemplateID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load template"})
	}
	policy, err := h.Policies.Resolve(ctx, tpl.Category, "")
	if err != nil {
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "no cancellation policy configured"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve policy"})
	}

	hours := refund.HoursBefore(occ.StartTime, time.Now().UTC())
	det, err := h.Orchestrator.Approve(ctx, id, *policy, hours)
	if err != nil {
		if errors.Is(err, refund.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "request is not pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "approval failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"request_id": id, "status": model.RequestApproved, "details": det})
}

// Reject handles POST /v1/studio/cancellations/:id/reject.
func (h *CancellationHandler) Reject(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)

	if err := h.Orchestrator.Reject(c.Request().Context(), id, strings.TrimSpace(body.Reason)); err != nil {
		if errors.Is(err, refund.ErrInvalidTransition) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "request is not pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rejection failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"request_id": id, "status": model.RequestRejected})
}

// Process handles POST /v1/studio/cancellations/:id/process.  Runs the
// money movement sequence for an approved request; safe to call again
// after a gateway failure, and reports partial processing distinctly so
// the reconciliation queue stays visible.
func (h *CancellationHandler) Process(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	ctx := c.Request().Context()

	err := h.Orchestrator.Process(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, refund.ErrGatewayFailed):
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":  "payment gateway refund failed; retry later",
			"status": model.RequestRefunding,
		})
	case errors.Is(err, refund.ErrPartialProcessing):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "refund done but credit failed; request needs reconciliation",
			"status": model.RequestNeedsReconciliation,
		})
	case errors.Is(err, refund.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "request is not ready for processing"})
	case errors.Is(err, repository.ErrCancellationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}

	req, err := h.Cancellations.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"request_id": id, "status": model.RequestProcessed})
	}
	return c.JSON(http.StatusOK, echo.Map{"request_id": id, "status": req.Status, "details": req.Details})
}

// Get handles GET /v1/cancellations/:id for the requesting customer or
// the studio.
func (h *CancellationHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	req, err := h.Cancellations.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCancellationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "request not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load request"})
	}
	return c.JSON(http.StatusOK, req)
}

// Reconciliation handles GET /v1/studio/cancellations/reconciliation:
// the queue of requests whose refund succeeded but whose credit failed.
func (h *CancellationHandler) Reconciliation(c echo.Context) error {
	reqs, err := h.Cancellations.ListByStatus(c.Request().Context(), model.RequestNeedsReconciliation)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list requests"})
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": reqs})
}
