package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

func (h *handlers) listComments(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	task, err := h.store.GetTask(ctx, p.ID, c.Param("taskId"))
	if err != nil {
		return h.fail(c, err)
	}
	comments, err := h.store.ListComments(ctx, task.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, comments)
}

type commentRequest struct {
	Content string `json:"content"`
}

// createComment stores the comment and fans out mention notifications to
// mentioned project members through the notification queue.
func (h *handlers) createComment(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	task, err := h.store.GetTask(ctx, p.ID, c.Param("taskId"))
	if err != nil {
		return h.fail(c, err)
	}

	var req commentRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Content == "" {
		return h.fail(c, fmt.Errorf("%w: comment content is required", domain.ErrValidation))
	}

	key, fresh, err := h.dedupeKey(ctx, c, actor.UID)
	if err != nil {
		return h.fail(c, err)
	}
	if !fresh {
		return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
	}

	comment := domain.Comment{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		AuthorID:    actor.UID,
		AuthorEmail: actor.Email,
		Content:     req.Content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.InsertComment(ctx, &comment); err != nil {
		h.releaseDedupeKey(actor.UID, key)
		return h.fail(c, err)
	}

	if err := h.notifyMentions(ctx, p, task, &comment); err != nil {
		h.logger.Errorf("mention fanout failed, err: %v, comment: %s", err, comment.ID)
	}

	h.publish(ctx, domain.ChangeEvent{Collection: "comments", EntityID: comment.ID, Type: domain.ChangeCreated, ProjectID: p.ID})
	return c.JSON(http.StatusCreated, comment)
}

// notifyMentions resolves @-mentions against project membership and enqueues
// one notification per mentioned member. Mentions of non-members are ignored.
func (h *handlers) notifyMentions(ctx context.Context, p *domain.Project, task *domain.Task, comment *domain.Comment) error {
	mentions := domain.ParseMentions(comment.Content)
	if len(mentions) == 0 {
		return nil
	}

	ns := make([]domain.Notification, 0, len(mentions))
	for _, email := range mentions {
		u, err := h.store.FindUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u == nil || !p.HasMember(u.UID) || u.UID == comment.AuthorID {
			continue
		}
		ns = append(ns, domain.Notification{
			ID:        uuid.NewString(),
			UserID:    u.UID,
			Message:   fmt.Sprintf("%s mentioned you on %q", comment.AuthorEmail, task.Title),
			Link:      fmt.Sprintf("/projects/%s/tasks/%s", p.ID, task.ID),
			CreatedAt: time.Now().UTC(),
		})
	}
	if len(ns) == 0 {
		return nil
	}
	return h.store.EnqueueMentionNotifications(ctx, ns)
}

func (h *handlers) deleteComment(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	task, err := h.store.GetTask(ctx, p.ID, c.Param("taskId"))
	if err != nil {
		return h.fail(c, err)
	}

	comment, err := h.store.GetComment(ctx, task.ID, c.Param("commentId"))
	if err != nil {
		return h.fail(c, err)
	}
	if comment.AuthorID != actor.UID && !actor.IsSuperAdmin() {
		return h.fail(c, domain.ErrPermissionDenied)
	}
	if err := h.store.DeleteComment(ctx, task.ID, comment.ID); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, domain.ChangeEvent{Collection: "comments", EntityID: comment.ID, Type: domain.ChangeDeleted, ProjectID: p.ID})
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) listNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ns, err := h.store.ListNotifications(ctx, actor.UID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ns)
}

func (h *handlers) readNotification(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	if err := h.store.MarkNotificationRead(ctx, actor.UID, c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
