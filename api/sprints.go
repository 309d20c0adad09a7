package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CODEGENANDTEAM/SCRUM-manager/burndown"
	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/storage"
)

func (h *handlers) listSprints(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	sprints, err := h.store.QuerySprints(ctx, p.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sprints)
}

type sprintRequest struct {
	Name           string    `json:"name"`
	Goal           string    `json:"goal"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	VelocityTarget int       `json:"velocityTarget"`
}

func (h *handlers) createSprint(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	var req sprintRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}

	sp := domain.Sprint{
		ID:             uuid.NewString(),
		ProjectID:      p.ID,
		Name:           req.Name,
		Goal:           req.Goal,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         domain.SprintUpcoming,
		VelocityTarget: req.VelocityTarget,
	}
	if err := domain.ValidateSprint(&sp); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.UpsertSprint(ctx, &sp); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "sprints", EntityID: sp.ID, Type: domain.ChangeCreated, ProjectID: p.ID, SprintID: sp.ID})
	return c.JSON(http.StatusCreated, sp)
}

type sprintUpdateRequest struct {
	Name           *string              `json:"name,omitempty"`
	Goal           *string              `json:"goal,omitempty"`
	StartDate      *time.Time           `json:"startDate,omitempty"`
	EndDate        *time.Time           `json:"endDate,omitempty"`
	Status         *domain.SprintStatus `json:"status,omitempty"`
	VelocityTarget *int                 `json:"velocityTarget,omitempty"`
}

func (h *handlers) updateSprint(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	sp, err := h.store.GetSprint(ctx, p.ID, c.Param("sprintId"))
	if err != nil {
		return h.fail(c, err)
	}
	if sp.IsLocked {
		return h.fail(c, fmt.Errorf("%w: sprint %s is locked", domain.ErrProtected, sp.ID))
	}

	var req sprintUpdateRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Name != nil {
		sp.Name = *req.Name
	}
	if req.Goal != nil {
		sp.Goal = *req.Goal
	}
	if req.StartDate != nil {
		sp.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		sp.EndDate = *req.EndDate
	}
	if req.VelocityTarget != nil {
		sp.VelocityTarget = *req.VelocityTarget
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.SprintUpcoming, domain.SprintActive, domain.SprintCompleted:
			sp.Status = *req.Status
		default:
			return h.fail(c, fmt.Errorf("%w: unknown sprint status %q", domain.ErrValidation, *req.Status))
		}
		// A completed sprint becomes read-only.
		if sp.Status == domain.SprintCompleted {
			sp.IsLocked = true
		}
	}

	if err := domain.ValidateSprint(sp); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.UpsertSprint(ctx, sp); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "sprints", EntityID: sp.ID, Type: domain.ChangeUpdated, ProjectID: p.ID, SprintID: sp.ID})
	return c.JSON(http.StatusOK, sp)
}

type burndownResponse struct {
	SprintID string           `json:"sprintId"`
	Points   []burndown.Point `json:"points"`
}

func (h *handlers) sprintBurndown(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	sp, err := h.store.GetSprint(ctx, p.ID, c.Param("sprintId"))
	if err != nil {
		return h.fail(c, err)
	}

	tasks, err := h.tasks.QueryTasks(ctx, storage.TaskQuery{ProjectID: p.ID, SprintID: sp.ID})
	if err != nil {
		return h.fail(c, err)
	}
	points := burndown.Project(tasks, sp.StartDate, sp.EndDate)
	return c.JSON(http.StatusOK, burndownResponse{SprintID: sp.ID, Points: points})
}

type projectStatsResponse struct {
	Counts    domain.StatusCounts `json:"counts"`
	Completed int                 `json:"completed"`
	Total     int                 `json:"total"`
}

func (h *handlers) projectStats(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	q := storage.TaskQuery{ProjectID: p.ID}
	if sid := c.QueryParam("sprintId"); sid != "" {
		q.SprintID = sid
	}
	tasks, err := h.tasks.QueryTasks(ctx, q)
	if err != nil {
		return h.fail(c, err)
	}

	completed, total := domain.SprintProgress(tasks)
	return c.JSON(http.StatusOK, projectStatsResponse{
		Counts:    domain.CountByStatus(tasks),
		Completed: completed,
		Total:     total,
	})
}
