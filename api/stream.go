package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

type streamFrame struct {
	Tasks    []domain.Task `json:"tasks"`
	Seq      uint64        `json:"seq"`
	Degraded bool          `json:"degraded,omitempty"`
}

// streamBoard serves a live query over server-sent events. Every frame is a
// complete snapshot of the query's result set, never a diff.
func (h *handlers) streamBoard(c echo.Context) error {
	ctx := c.Request().Context()

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); authHeader == "" && token != "" {
		authHeader = "Bearer " + token
	}
	sess, err := h.auth.SessionFromAuthHeader(authHeader)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	actor, err := h.actorFromSession(ctx, sess)
	if err != nil {
		return h.fail(c, err)
	}

	projectID := c.QueryParam("projectId")
	if projectID == "" {
		return c.String(http.StatusBadRequest, "projectId is required")
	}
	if _, err := h.projectForRead(ctx, actor, projectID); err != nil {
		return h.fail(c, err)
	}

	q := taskQueryFromRequest(c, projectID)
	if err := q.Validate(); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	sub, err := h.streams.Subscribe(ctx, q)
	if err != nil {
		return h.fail(c, err)
	}
	defer sub.Unsubscribe()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	c.Response().WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, open := <-sub.Snapshots():
			if !open {
				return nil
			}
			frame := streamFrame{Tasks: snap.Tasks, Seq: snap.Seq, Degraded: snap.Degraded}
			data, err := sonic.Marshal(frame)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
