package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// PolicyHandler manages cancellation policies for the studio.
type PolicyHandler struct {
	Policies *repository.PolicyRepo
}

func NewPolicyHandler(p *repository.PolicyRepo) *PolicyHandler {
	if p == nil {
		panic("nil repository passed to NewPolicyHandler")
	}
	return &PolicyHandler{Policies: p}
}

type policyRuleReq struct {
	HoursBefore        int   `json:"hours_before" validate:"min=0"`
	RefundPct          int   `json:"refund_pct" validate:"min=0,max=100"`
	CreditPct          int   `json:"credit_pct" validate:"min=0,max=100"`
	ProcessingFeeCents int64 `json:"processing_fee_cents" validate:"min=0"`
}

type policyReq struct {
	Name           string          `json:"name" validate:"required"`
	ClassCategory  string          `json:"class_category"`
	MembershipType string          `json:"membership_type"`
	Rules          []policyRuleReq `json:"rules" validate:"required,min=1,dive"`
}

// Create handles POST /v1/studio/policies.  Tiers are stored sorted by
// descending advance-notice threshold regardless of request order.
func (h *PolicyHandler) Create(c echo.Context) error {
	var req policyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	seen := make(map[int]struct{}, len(req.Rules))
	for _, r := range req.Rules {
		if _, dup := seen[r.HoursBefore]; dup {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duplicate hours_before tier"})
		}
		seen[r.HoursBefore] = struct{}{}
	}

	policy := &model.CancellationPolicy{
		Name:           strings.TrimSpace(req.Name),
		ClassCategory:  strings.ToLower(strings.TrimSpace(req.ClassCategory)),
		MembershipType: strings.ToLower(strings.TrimSpace(req.MembershipType)),
	}
	for _, r := range req.Rules {
		policy.Rules = append(policy.Rules, model.CancellationRule{
			HoursBefore:        r.HoursBefore,
			RefundPct:          r.RefundPct,
			CreditPct:          r.CreditPct,
			ProcessingFeeCents: r.ProcessingFeeCents,
		})
	}
	sort.Slice(policy.Rules, func(i, j int) bool {
		return policy.Rules[i].HoursBefore > policy.Rules[j].HoursBefore
	})

	id, err := h.Policies.Create(c.Request().Context(), policy)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create policy"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// List handles GET /v1/studio/policies.
func (h *PolicyHandler) List(c echo.Context) error {
	policies, err := h.Policies.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list policies"})
	}
	return c.JSON(http.StatusOK, echo.Map{"policies": policies})
}

// Get handles GET /v1/studio/policies/:id.
func (h *PolicyHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid policy id"})
	}
	policy, err := h.Policies.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrPolicyNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "policy not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load policy"})
	}
	return c.JSON(http.StatusOK, policy)
}
