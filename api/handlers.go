package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/CODEGENANDTEAM/SCRUM-manager/authz"
	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

// postBodyMaxSize bounds request bodies accepted by write endpoints.
const postBodyMaxSize = 1 << 20

// headerIdempotencyKey carries the client-chosen dedupe key on POST requests.
const headerIdempotencyKey = "Idempotency-Key"

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, tasks TaskSource, feed Publisher, streams Streams, auth Authenticator, deduper Deduper, logger *log.Logger) {
	h := &handlers{store: store, tasks: tasks, feed: feed, streams: streams, auth: auth, deduper: deduper, logger: logger}

	e.GET("/healthz", h.healthz)
	e.POST("/api/users/bootstrap", h.bootstrapUser)

	e.GET("/api/projects", h.listProjects)
	e.POST("/api/projects", h.createProject)
	e.GET("/api/projects/:id", h.getProject)
	e.PUT("/api/projects/:id", h.updateProject)
	e.DELETE("/api/projects/:id", h.deleteProject)
	e.POST("/api/projects/:id/members", h.addMember)
	e.DELETE("/api/projects/:id/members/:uid", h.removeMember)

	e.GET("/api/projects/:id/sprints", h.listSprints)
	e.POST("/api/projects/:id/sprints", h.createSprint)
	e.PUT("/api/projects/:id/sprints/:sprintId", h.updateSprint)
	e.GET("/api/projects/:id/sprints/:sprintId/burndown", h.sprintBurndown)
	e.GET("/api/projects/:id/stats", h.projectStats)

	e.GET("/api/projects/:id/tasks", h.listTasks)
	e.POST("/api/projects/:id/tasks", h.createTask)
	e.PUT("/api/projects/:id/tasks/:taskId", h.updateTask)
	e.DELETE("/api/projects/:id/tasks/:taskId", h.deleteTask)
	e.POST("/api/projects/:id/tasks/:taskId/move", h.moveTask)

	e.GET("/api/projects/:id/tasks/:taskId/comments", h.listComments)
	e.POST("/api/projects/:id/tasks/:taskId/comments", h.createComment)
	e.DELETE("/api/projects/:id/tasks/:taskId/comments/:commentId", h.deleteComment)

	e.GET("/api/notifications", h.listNotifications)
	e.POST("/api/notifications/:id/read", h.readNotification)

	e.GET("/api/my-work", h.myWork)
	e.GET("/api/stream", h.streamBoard)

	initWritePool(logger)
}

type handlers struct {
	store   Storage
	tasks   TaskSource
	feed    Publisher
	streams Streams
	auth    Authenticator
	deduper Deduper
	logger  *log.Logger
}

func (h *handlers) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// actor resolves the caller's session and global role. A caller without a
// stored account is still a valid actor with no global role.
func (h *handlers) actor(ctx context.Context, c echo.Context) (authz.Actor, error) {
	sess, err := h.auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return authz.Actor{}, err
	}
	return h.actorFromSession(ctx, sess)
}

func (h *handlers) actorFromSession(ctx context.Context, sess authz.Session) (authz.Actor, error) {
	act := authz.Actor{Session: sess}
	u, err := h.store.GetUser(ctx, sess.UID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return authz.Actor{}, err
	}
	if u != nil {
		act.GlobalRole = u.Role
		if act.Email == "" {
			act.Email = u.Email
		}
	}
	return act, nil
}

// projectForRead loads a project and verifies the actor may see it.
func (h *handlers) projectForRead(ctx context.Context, actor authz.Actor, projectID string) (*domain.Project, error) {
	p, err := h.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := authz.CheckEditProject(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, postBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied), errors.Is(err, domain.ErrProtected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrSelfRemoval):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateMember),
		errors.Is(err, domain.ErrOwnershipTransferRequired),
		errors.Is(err, domain.ErrConflictNormalizationRequired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c echo.Context, err error) error {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.String(status, err.Error())
}

// publish emits a change event and drops any cached task snapshots the change
// may have invalidated.
func (h *handlers) publish(ctx context.Context, ev domain.ChangeEvent) {
	ev.Timestamp = nextTimestamp()
	h.feed.Publish(ctx, ev)
	if ev.Collection == "tasks" && ev.ProjectID != "" {
		h.tasks.Evict(ctx, ev.ProjectID)
	}
}

// dedupeKey reserves the request's idempotency key. It returns the key, and
// false when the request is a duplicate that must not be reapplied.
func (h *handlers) dedupeKey(ctx context.Context, c echo.Context, uid string) (string, bool, error) {
	key := c.Request().Header.Get(headerIdempotencyKey)
	if key == "" {
		return "", true, nil
	}
	added, err := h.deduper.Add(ctx, uid, key)
	if err != nil {
		return key, false, err
	}
	return key, added, nil
}

func (h *handlers) releaseDedupeKey(uid, key string) {
	if key == "" {
		return
	}
	if err := h.deduper.Remove(bg, uid, key); err != nil {
		h.logger.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", err, key, uid)
	}
}

type bootstrapRequest struct {
	Name string `json:"name"`
}

// bootstrapUser upserts the account record for the authenticated caller so
// lookups by e-mail and global-role checks have a row to find.
func (h *handlers) bootstrapUser(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := h.auth.SessionFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	var req bootstrapRequest
	if err := decodeBody(c, &req); err != nil && !errors.Is(err, io.EOF) {
		return c.String(http.StatusBadRequest, "invalid body")
	}

	existing, err := h.store.GetUser(ctx, sess.UID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return h.fail(c, err)
	}

	u := domain.User{UID: sess.UID, Email: sess.Email, Name: req.Name}
	if existing != nil {
		u.Role = existing.Role
		if u.Name == "" {
			u.Name = existing.Name
		}
		if u.Email == "" {
			u.Email = existing.Email
		}
	}
	if err := h.store.UpsertUser(ctx, &u); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
