package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CODEGENANDTEAM/SCRUM-manager/authz"
	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

func (h *handlers) listProjects(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	uid := actor.UID
	if actor.IsSuperAdmin() {
		uid = ""
	}
	projects, err := h.store.QueryProjects(ctx, uid)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, projects)
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *handlers) createProject(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	var req projectRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}

	p := domain.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     actor.UID,
		TeamRoles:   map[string]domain.Role{actor.UID: domain.RoleOwner},
		TeamUids:    []string{actor.UID},
		Status:      "active",
		CreatedAt:   time.Now().UTC(),
	}
	if err := domain.ValidateProject(&p); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.UpsertProject(ctx, &p); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "projects", EntityID: p.ID, Type: domain.ChangeCreated, ProjectID: p.ID})
	return c.JSON(http.StatusCreated, p)
}

func (h *handlers) getProject(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *handlers) updateProject(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	var req projectRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	p.Description = req.Description

	if err := domain.ValidateProject(p); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.UpsertProject(ctx, p); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "projects", EntityID: p.ID, Type: domain.ChangeUpdated, ProjectID: p.ID})
	return c.JSON(http.StatusOK, p)
}

func (h *handlers) deleteProject(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	p, err := h.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if err := authz.CheckDeleteProject(actor, p); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.DeleteProject(ctx, p.ID); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "projects", EntityID: p.ID, Type: domain.ChangeDeleted, ProjectID: p.ID})
	return c.NoContent(http.StatusNoContent)
}

type addMemberRequest struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// addMember grants a role on the project. Both membership fields change in a
// single replace write so teamRoles and teamUids cannot diverge.
func (h *handlers) addMember(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	p, err := h.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	var req addMemberRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}
	if req.Role == domain.RoleOwner {
		return h.fail(c, fmt.Errorf("%w: ownership is granted by transfer, not by invite", domain.ErrValidation))
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleMember {
		return h.fail(c, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, req.Role))
	}

	target, err := h.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		return h.fail(c, err)
	}
	if err := authz.CheckAddMember(actor, p, target); err != nil {
		return h.fail(c, err)
	}

	p.TeamRoles[target.UID] = req.Role
	p.TeamUids = append(p.TeamUids, target.UID)
	if err := domain.ValidateProject(p); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.UpsertProject(ctx, p); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "projects", EntityID: p.ID, Type: domain.ChangeUpdated, ProjectID: p.ID})
	return c.JSON(http.StatusOK, p)
}

func (h *handlers) removeMember(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	p, err := h.store.GetProject(ctx, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	uid := c.Param("uid")
	role, ok := p.TeamRoles[uid]
	if !ok {
		return h.fail(c, domain.ErrNotFound)
	}

	target := authz.Member{UID: uid, ProjectRole: role}
	if u, err := h.store.GetUser(ctx, uid); err == nil && u != nil {
		target.GlobalRole = u.Role
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return h.fail(c, err)
	}

	if err := authz.CheckRemoveMember(actor, p, target); err != nil {
		return h.fail(c, err)
	}

	delete(p.TeamRoles, uid)
	uids := p.TeamUids[:0]
	for _, id := range p.TeamUids {
		if id != uid {
			uids = append(uids, id)
		}
	}
	p.TeamUids = uids

	if err := domain.ValidateProject(p); err != nil {
		return h.fail(c, err)
	}
	if err := h.store.UpsertProject(ctx, p); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "projects", EntityID: p.ID, Type: domain.ChangeUpdated, ProjectID: p.ID})
	return c.JSON(http.StatusOK, p)
}
