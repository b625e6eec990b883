package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
	"github.com/GeorgesCH/studio-class-scheduler/internal/schedule"
)

// ScheduleHandler bundles what the studio needs to run the scheduling
// wizard: defining recurring classes, previewing and materializing
// their occurrences, and editing live series.
type ScheduleHandler struct {
	Templates   *repository.TemplateRepo
	Instances   *repository.InstanceRepo
	Occurrences *repository.OccurrenceRepo
}

func NewScheduleHandler(t *repository.TemplateRepo, i *repository.InstanceRepo, o *repository.OccurrenceRepo) *ScheduleHandler {
	if t == nil || i == nil || o == nil {
		panic("nil repository passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Templates: t, Instances: i, Occurrences: o}
}

// instanceReq is the wizard's request body.  Dates are "2006-01-02",
// wall-clock times "15:04"; everything is interpreted as UTC.
type instanceReq struct {
	TemplateID    uint64   `json:"template_id" validate:"required"`
	InstructorID  uint64   `json:"instructor_id" validate:"required"`
	LocationID    uint64   `json:"location_id" validate:"required"`
	StartDate     string   `json:"start_date" validate:"required"`
	StartTime     string   `json:"start_time" validate:"required"`
	EndTime       string   `json:"end_time" validate:"required"`
	Pattern       string   `json:"pattern" validate:"required,oneof=none daily weekly biweekly monthly"`
	Interval      int      `json:"interval"`
	DaysOfWeek    []int    `json:"days_of_week" validate:"dive,min=0,max=6"`
	EndDate       string   `json:"end_date"`
	EndCount      *int     `json:"end_count" validate:"omitempty,min=1"`
	BlackoutDates []string `json:"blackout_dates"`
	PriceCents    *int64   `json:"price_cents" validate:"omitempty,min=0"`
	Capacity      *uint32  `json:"capacity" validate:"omitempty,min=1"`
	Force         bool     `json:"force"` // materialize despite conflicts
}

// toInstance converts the wire form into a ClassInstance, filling price
// and capacity defaults from the template.
func (req *instanceReq) toInstance(tpl *model.ClassTemplate) (*model.ClassInstance, error) {
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, err
	}
	inst := &model.ClassInstance{
		TemplateID:   req.TemplateID,
		InstructorID: req.InstructorID,
		LocationID:   req.LocationID,
		StartDate:    startDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Rule: model.RecurrenceRule{
			Pattern:  req.Pattern,
			Interval: req.Interval,
			EndCount: req.EndCount,
		},
		PriceCents: tpl.DefaultPriceCents,
		Capacity:   tpl.DefaultCapacity,
	}
	for _, d := range req.DaysOfWeek {
		inst.Rule.DaysOfWeek = append(inst.Rule.DaysOfWeek, time.Weekday(d))
	}
	if req.EndDate != "" {
		end, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
		if err != nil {
			return nil, err
		}
		inst.Rule.EndDate = &end
	}
	for _, b := range req.BlackoutDates {
		d, err := time.ParseInLocation("2006-01-02", b, time.UTC)
		if err != nil {
			return nil, err
		}
		inst.BlackoutDates = append(inst.BlackoutDates, d)
	}
	if req.PriceCents != nil {
		inst.PriceCents = *req.PriceCents
	}
	if req.Capacity != nil {
		inst.Capacity = *req.Capacity
	}
	return inst, nil
}

// expandAndCheck expands an instance and checks every slot against the
// already-scheduled calendar plus the batch itself.  existingStarts
// holds start times already materialized for this instance (empty for a
// new one).
func (h *ScheduleHandler) expandAndCheck(c echo.Context, inst *model.ClassInstance, existingStarts []time.Time, excludeInstanceID uint64) ([]schedule.Slot, []schedule.Conflict, error) {
	slots, err := schedule.Expand(inst, existingStarts)
	if err != nil {
		return nil, nil, err
	}
	if len(slots) == 0 {
		return slots, nil, nil
	}
	from, to := slots[0].Start, slots[0].End
	for _, s := range slots[1:] {
		if s.Start.Before(from) {
			from = s.Start
		}
		if s.End.After(to) {
			to = s.End
		}
	}
	existing, err := h.Occurrences.ListScheduledBetween(c.Request().Context(), from, to)
	if err != nil {
		return nil, nil, err
	}
	// Checking the batch against itself too: excludeInstanceID only
	// filters rows already owned by the instance being re-expanded.
	filtered := existing[:0]
	for _, o := range existing {
		if excludeInstanceID != 0 && o.InstanceID == excludeInstanceID {
			continue
		}
		filtered = append(filtered, o)
	}
	ix := schedule.NewConflictIndex(filtered, 0)
	var all []schedule.Conflict
	for _, s := range slots {
		all = append(all, ix.CheckAndAdd(schedule.Candidate{
			InstructorID: inst.InstructorID,
			LocationID:   inst.LocationID,
			Start:        s.Start,
			End:          s.End,
		}, 0)...)
	}
	return slots, all, nil
}

// CreateInstance handles POST /v1/studio/instances.  It runs the whole
// wizard in one call: validate, expand the recurrence, detect
// conflicts, then materialize the definition and its occurrences in a
// single transaction.  Conflicts abort with 409 unless force is set.
func (h *ScheduleHandler) CreateInstance(c echo.Context) error {
	var req instanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()

	tpl, err := h.Templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		if err == repository.ErrTemplateNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load template"})
	}
	inst, err := req.toInstance(tpl)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date format"})
	}

	slots, conflicts, err := h.expandAndCheck(c, inst, nil, 0)
	if err != nil {
		switch err {
		case schedule.ErrUnknownPattern, schedule.ErrBadTimeWindow, schedule.ErrUnbounded:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check conflicts"})
	}
	if len(conflicts) > 0 && !req.Force {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "schedule conflicts detected",
			"conflicts": conflicts,
		})
	}

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

	instanceID, err := h.Instances.CreateTx(ctx, tx, inst)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create instance"})
	}
	occs := make([]model.ClassOccurrence, 0, len(slots))
	for _, s := range slots {
		occs = append(occs, model.ClassOccurrence{
			TemplateID:   inst.TemplateID,
			InstanceID:   instanceID,
			InstructorID: inst.InstructorID,
			LocationID:   inst.LocationID,
			StartTime:    s.Start,
			EndTime:      s.End,
			PriceCents:   inst.PriceCents,
			Capacity:     inst.Capacity,
		})
	}
	if err := h.Occurrences.CreateBatchTx(ctx, tx, occs); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to materialize occurrences"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"instance_id": instanceID,
		"occurrences": len(occs),
		"conflicts":   conflicts, // non-empty only under force
	})
}

// PreviewInstance handles POST /v1/studio/instances/preview.  Same
// expansion and conflict detection as CreateInstance, but nothing is
// written; the wizard shows the result before the studio commits.
func (h *ScheduleHandler) PreviewInstance(c echo.Context) error {
	var req instanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	tpl, err := h.Templates.GetByID(c.Request().Context(), req.TemplateID)
	if err != nil {
		if err == repository.ErrTemplateNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "template not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load template"})
	}
	inst, err := req.toInstance(tpl)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date format"})
	}
	slots, conflicts, err := h.expandAndCheck(c, inst, nil, 0)
	if err != nil {
		switch err {
		case schedule.ErrUnknownPattern, schedule.ErrBadTimeWindow, schedule.ErrUnbounded:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check conflicts"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"slots":     slots,
		"conflicts": conflicts,
	})
}

// Rematerialize handles POST /v1/studio/instances/:id/expand.  It
// re-runs expansion for an existing instance and inserts only the
// occurrences that are not materialized yet; running it twice changes
// nothing, so a crash between instance creation and materialization is
// repaired by calling it again.
func (h *ScheduleHandler) Rematerialize(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instance id"})
	}
	ctx := c.Request().Context()

	inst, err := h.Instances.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrInstanceNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "instance not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load instance"})
	}
	existingStarts, err := h.Occurrences.ExistingStartTimes(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load occurrences"})
	}
	slots, conflicts, err := h.expandAndCheck(c, inst, existingStarts, id)
	if err != nil {
		switch err {
		case schedule.ErrUnknownPattern, schedule.ErrBadTimeWindow, schedule.ErrUnbounded:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check conflicts"})
	}
	if len(conflicts) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "schedule conflicts detected",
			"conflicts": conflicts,
		})
	}

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
	occs := make([]model.ClassOccurrence, 0, len(slots))
	for _, s := range slots {
		occs = append(occs, model.ClassOccurrence{
			TemplateID:   inst.TemplateID,
			InstanceID:   inst.ID,
			InstructorID: inst.InstructorID,
			LocationID:   inst.LocationID,
			StartTime:    s.Start,
			EndTime:      s.End,
			PriceCents:   inst.PriceCents,
			Capacity:     inst.Capacity,
		})
	}
	if err := h.Occurrences.CreateBatchTx(ctx, tx, occs); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to materialize occurrences"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"materialized": len(occs)})
}

// editReq carries a recurring-series edit.
type editReq struct {
	Scope         string  `json:"scope" validate:"required,oneof=this_occurrence future_occurrences all_occurrences"`
	InstructorID  uint64  `json:"instructor_id"`
	LocationID    uint64  `json:"location_id"`
	StartTime     string  `json:"start_time"` // RFC3339, this_occurrence only
	EndTime       string  `json:"end_time"`
	PriceCents    *int64  `json:"price_cents" validate:"omitempty,min=0"`
	Capacity      *uint32 `json:"capacity" validate:"omitempty,min=1"`
}

// EditOccurrence handles PATCH /v1/studio/occurrences/:id.  Scope
// decides the blast radius: just this occurrence, this and all future
// occurrences of its instance, or the whole series.  Terminal
// occurrences are never touched.  Moves are conflict-checked against
// the rest of the calendar before anything is written.
func (h *ScheduleHandler) EditOccurrence(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid occurrence id"})
	}
	var req editReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()

	occ, err := h.Occurrences.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrOccurrenceNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "occurrence not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load occurrence"})
	}
	if occ.Status != model.OccurrenceScheduled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "occurrence is no longer scheduled"})
	}

	changes := repository.OccurrenceChanges{
		InstructorID: req.InstructorID,
		LocationID:   req.LocationID,
		PriceCents:   req.PriceCents,
		Capacity:     req.Capacity,
	}

	// A time move only makes sense for a single occurrence; series-wide
	// time changes go through cancelling and re-creating the instance.
	if req.Scope == model.EditScopeThisOccurrence && req.StartTime != "" {
		start, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_time format"})
		}
		end, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_time format"})
		}
		if !end.After(start) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be after start_time"})
		}
		s, e := start.UTC(), end.UTC()
		changes.StartTime, changes.EndTime = &s, &e
	} else if req.StartTime != "" || req.EndTime != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "time moves require scope this_occurrence"})
	}

	// Conflict-check the post-edit shape of the affected occurrences.
	instructorID := occ.InstructorID
	if req.InstructorID != 0 {
		instructorID = req.InstructorID
	}
	locationID := occ.LocationID
	if req.LocationID != 0 {
		locationID = req.LocationID
	}
	if req.InstructorID != 0 || req.LocationID != 0 || changes.StartTime != nil {
		conflicts, err := h.checkEditConflicts(c, occ, req.Scope, instructorID, locationID, changes.StartTime, changes.EndTime)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check conflicts"})
		}
		if len(conflicts) > 0 {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     "edit would create schedule conflicts",
				"conflicts": conflicts,
			})
		}
	}

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

	var updated int
	switch req.Scope {
	case model.EditScopeThisOccurrence:
		if err := h.Occurrences.UpdateOneTx(ctx, tx, id, changes); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update occurrence"})
		}
		updated = 1
	case model.EditScopeFutureOccurrences:
		from := occ.StartTime
		ids, err := h.Occurrences.ApplyChangesTx(ctx, tx, occ.InstanceID, &from, changes)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update occurrences"})
		}
		updated = len(ids)
	case model.EditScopeAllOccurrences:
		ids, err := h.Occurrences.ApplyChangesTx(ctx, tx, occ.InstanceID, nil, changes)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update occurrences"})
		}
		updated = len(ids)
	}
	// Series-wide assignment edits also update the definition so later
	// re-expansion picks up the new instructor or room.
	if req.Scope != model.EditScopeThisOccurrence && (req.InstructorID != 0 || req.LocationID != 0) {
		if err := h.Instances.UpdateAssignmentsTx(ctx, tx, occ.InstanceID, req.InstructorID, req.LocationID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update instance"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"updated": updated})
}

// checkEditConflicts validates the post-edit shape of every occurrence
// an edit touches against the rest of the SCHEDULED calendar.
func (h *ScheduleHandler) checkEditConflicts(c echo.Context, anchor *model.ClassOccurrence, scope string, instructorID, locationID uint64, newStart, newEnd *time.Time) ([]schedule.Conflict, error) {
	ctx := c.Request().Context()

	var affected []model.ClassOccurrence
	switch scope {
	case model.EditScopeThisOccurrence:
		moved := *anchor
		if newStart != nil {
			moved.StartTime, moved.EndTime = *newStart, *newEnd
		}
		affected = []model.ClassOccurrence{moved}
	default:
		all, err := h.Occurrences.ListByInstance(ctx, anchor.InstanceID)
		if err != nil {
			return nil, err
		}
		for _, o := range all {
			if o.Status != model.OccurrenceScheduled {
				continue
			}
			if scope == model.EditScopeFutureOccurrences && o.StartTime.Before(anchor.StartTime) {
				continue
			}
			affected = append(affected, o)
		}
	}
	if len(affected) == 0 {
		return nil, nil
	}

	from, to := affected[0].StartTime, affected[0].EndTime
	for _, o := range affected[1:] {
		if o.StartTime.Before(from) {
			from = o.StartTime
		}
		if o.EndTime.After(to) {
			to = o.EndTime
		}
	}
	existing, err := h.Occurrences.ListScheduledBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	// Drop the occurrences being edited from the index so they do not
	// collide with their own new shape.
	edited := make(map[uint64]struct{}, len(affected))
	for _, o := range affected {
		edited[o.ID] = struct{}{}
	}
	others := existing[:0]
	for _, o := range existing {
		if _, ok := edited[o.ID]; ok {
			continue
		}
		others = append(others, o)
	}
	ix := schedule.NewConflictIndex(others, 0)
	var all []schedule.Conflict
	for _, o := range affected {
		all = append(all, ix.CheckAndAdd(schedule.Candidate{
			InstructorID: instructorID,
			LocationID:   locationID,
			Start:        o.StartTime,
			End:          o.EndTime,
		}, o.ID)...)
	}
	return all, nil
}
