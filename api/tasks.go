package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CODEGENANDTEAM/SCRUM-manager/board"
	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/ordering"
	"github.com/CODEGENANDTEAM/SCRUM-manager/storage"
)

// taskQueryFromRequest builds the list filter from query parameters.
func taskQueryFromRequest(c echo.Context, projectID string) storage.TaskQuery {
	q := storage.TaskQuery{ProjectID: projectID}
	if sid := c.QueryParam("sprintId"); sid != "" {
		q.SprintID = sid
	}
	if c.QueryParam("backlog") == "1" {
		q.BacklogOnly = true
	}
	if uid := c.QueryParam("assignee"); uid != "" {
		q.AssigneeID = uid
	}
	return q
}

func (h *handlers) listTasks(c echo.Context) (err error) {
	ctx := c.Request().Context()
	metrics := newRequestMetrics("/api/projects/:id/tasks", h.logger)
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	actor, authErr := h.actor(ctx, c)
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		err = c.String(http.StatusUnauthorized, authErr.Error())
		return err
	}
	if _, aerr := h.projectForRead(ctx, actor, c.Param("id")); aerr != nil {
		metrics.SetErrorStage("authz")
		err = h.fail(c, aerr)
		return err
	}

	q := taskQueryFromRequest(c, c.Param("id"))
	if verr := q.Validate(); verr != nil {
		metrics.SetErrorStage("invalid_query")
		err = c.String(http.StatusBadRequest, verr.Error())
		return err
	}

	fetchStart := time.Now()
	tasks, fetchErr := h.tasks.QueryTasks(ctx, q)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		err = h.fail(c, fetchErr)
		return err
	}
	metrics.SetTasksReturned(len(tasks))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, tasks)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

type taskCreateRequest struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Type          domain.TaskType   `json:"type"`
	StoryPoints   int               `json:"storyPoints"`
	AssigneeID    string            `json:"assigneeId"`
	AssigneeEmail string            `json:"assigneeEmail"`
	SprintID      string            `json:"sprintId"`
	Status        domain.TaskStatus `json:"status"`
}

type duplicateResponse struct {
	Duplicate bool `json:"duplicate"`
}

func (h *handlers) createTask(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	var req taskCreateRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Type == "" {
		req.Type = domain.TypeTask
	}
	if req.Status == "" {
		req.Status = domain.StatusToDo
	}

	task := domain.Task{
		ID:            uuid.NewString(),
		ProjectID:     p.ID,
		SprintID:      req.SprintID,
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		StoryPoints:   req.StoryPoints,
		AssigneeID:    req.AssigneeID,
		AssigneeEmail: req.AssigneeEmail,
		Status:        req.Status,
		CreatedAt:     time.Now().UTC(),
	}
	if task.Status == domain.StatusDone {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	order, err := h.orderAtPartitionEnd(ctx, &task)
	if err != nil {
		return h.fail(c, err)
	}
	task.Order = order

	if err := domain.ValidateTask(&task); err != nil {
		return h.fail(c, err)
	}

	key, fresh, err := h.dedupeKey(ctx, c, actor.UID)
	if err != nil {
		return h.fail(c, err)
	}
	if !fresh {
		return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
	}

	if err := h.store.InsertTask(ctx, &task); err != nil {
		h.releaseDedupeKey(actor.UID, key)
		return h.fail(c, err)
	}
	h.publish(ctx, taskEvent(domain.ChangeCreated, &task))
	return c.JSON(http.StatusCreated, task)
}

// orderAtPartitionEnd returns a position key after every existing task in the
// new task's (sprint, status) partition.
func (h *handlers) orderAtPartitionEnd(ctx context.Context, task *domain.Task) (float64, error) {
	q := storage.TaskQuery{ProjectID: task.ProjectID}
	if task.SprintID == "" {
		q.BacklogOnly = true
	} else {
		q.SprintID = task.SprintID
	}
	peers, err := h.tasks.QueryTasks(ctx, q)
	if err != nil {
		return 0, err
	}
	var prev *float64
	for _, t := range peers {
		if t.Status != task.Status {
			continue
		}
		if prev == nil || t.Order > *prev {
			o := t.Order
			prev = &o
		}
	}
	return ordering.Between(prev, nil)
}

func taskEvent(typ string, t *domain.Task) domain.ChangeEvent {
	return domain.ChangeEvent{
		Collection: "tasks",
		EntityID:   t.ID,
		Type:       typ,
		ProjectID:  t.ProjectID,
		SprintID:   t.SprintID,
		AssigneeID: t.AssigneeID,
	}
}

func (h *handlers) updateTask(c echo.Context) error {
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

	var patch domain.TaskPatch
	if err := decodeBody(c, &patch); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if patch.IsZero() {
		return c.String(http.StatusBadRequest, "empty patch")
	}

	// Keep the completion timestamp tied to the Done column regardless of
	// what the client sent.
	if patch.Status != nil {
		if *patch.Status == domain.StatusDone {
			patch.ClearCompletedAt = false
			if patch.CompletedAt == nil && task.CompletedAt == nil {
				now := time.Now().UTC()
				patch.CompletedAt = &now
			}
		} else {
			patch.CompletedAt = nil
			patch.ClearCompletedAt = true
		}
	}

	next := *task
	patch.Apply(&next)
	if err := domain.ValidateTask(&next); err != nil {
		return h.fail(c, err)
	}

	if err := h.store.UpdateTask(ctx, p.ID, task.ID, patch); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, taskEvent(domain.ChangeUpdated, &next))
	return c.JSON(http.StatusOK, next)
}

func (h *handlers) deleteTask(c echo.Context) error {
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
	if err := h.store.DeleteTask(ctx, p.ID, task.ID); err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, taskEvent(domain.ChangeDeleted, task))
	return c.NoContent(http.StatusNoContent)
}

type moveResponse struct {
	MutationID string `json:"mutationId,omitempty"`
	Noop       bool   `json:"noop,omitempty"`
}

// moveTask applies a drag-drop gesture. The optimistic transition is computed
// synchronously; the remote write is handed to the write pool and the request
// is answered before it lands.
func (h *handlers) moveTask(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	p, err := h.projectForRead(ctx, actor, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}

	var ev board.DropEvent
	if err := decodeBody(c, &ev); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	ev.TaskID = c.Param("taskId")

	tasks, err := h.tasks.QueryTasks(ctx, storage.TaskQuery{ProjectID: p.ID})
	if err != nil {
		return h.fail(c, err)
	}

	key, fresh, err := h.dedupeKey(ctx, c, actor.UID)
	if err != nil {
		return h.fail(c, err)
	}
	if !fresh {
		return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
	}

	projectID := p.ID
	var ctrl *board.Controller
	submit := func(m board.Mutation) {
		job := writeJob{
			name: "task.move",
			run: func(jc context.Context) error {
				if err := h.store.UpdateTask(jc, projectID, m.TaskID, m.Patch); err != nil {
					return err
				}
				moved, _ := ctrl.Task(m.TaskID)
				moved.ProjectID = projectID
				h.publish(jc, taskEvent(domain.ChangeUpdated, &moved))
				return nil
			},
			done: func(err error) {
				if err != nil {
					h.releaseDedupeKey(actor.UID, key)
				}
				if rerr := ctrl.ResolveMutation(m.ID, err); rerr != nil {
					h.logger.Errorf("move rollback, err: %v, task: %s, mutation: %s", rerr, m.TaskID, m.ID)
				}
			},
		}
		if !tryEnqueueWrite(job) {
			h.logger.Warn("write pool saturated; processing inline")
			_ = runInline(job)
		}
	}
	ctrl = board.NewController(submit, h.logger)
	ctrl.ApplyRemoteSnapshot(tasks)

	renumber := func(batch []ordering.Reassignment) error {
		if err := h.store.ApplyOrderBatch(ctx, projectID, batch); err != nil {
			return err
		}
		h.publish(ctx, domain.ChangeEvent{Collection: "tasks", Type: domain.ChangeUpdated, ProjectID: projectID})
		return nil
	}
	eng := board.NewEngine(ctrl, c.QueryParam("sprintId"), renumber)

	if err := eng.Begin(ev.TaskID); err != nil {
		h.releaseDedupeKey(actor.UID, key)
		return h.fail(c, err)
	}
	mutationID, err := eng.Drop(ev)
	if err != nil {
		h.releaseDedupeKey(actor.UID, key)
		return h.fail(c, err)
	}
	if mutationID == "" {
		h.releaseDedupeKey(actor.UID, key)
		return c.JSON(http.StatusOK, moveResponse{Noop: true})
	}
	return c.JSON(http.StatusAccepted, moveResponse{MutationID: mutationID})
}

type myWorkItem struct {
	ProjectID   string      `json:"projectId"`
	ProjectName string      `json:"projectName"`
	SprintName  string      `json:"sprintName,omitempty"`
	Task        domain.Task `json:"task"`
}

// myWork lists the caller's open assignments across every project they
// belong to.
func (h *handlers) myWork(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := h.actor(ctx, c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}

	projects, err := h.store.QueryProjects(ctx, actor.UID)
	if err != nil {
		return h.fail(c, err)
	}

	items := make([]myWorkItem, 0, 16)
	sprintIDs := make([]string, 0, 8)
	seenSprint := make(map[string]bool)
	for i := range projects {
		p := &projects[i]
		tasks, err := h.tasks.QueryTasks(ctx, storage.TaskQuery{ProjectID: p.ID, AssigneeID: actor.UID})
		if err != nil {
			return h.fail(c, err)
		}
		for _, t := range tasks {
			if t.Status == domain.StatusDone {
				continue
			}
			items = append(items, myWorkItem{ProjectID: p.ID, ProjectName: p.Name, Task: t})
			if t.SprintID != "" && !seenSprint[t.SprintID] && len(sprintIDs) < storage.MaxInValues {
				seenSprint[t.SprintID] = true
				sprintIDs = append(sprintIDs, t.SprintID)
			}
		}
	}

	if len(sprintIDs) > 0 {
		sprints, err := h.store.QuerySprintsIn(ctx, sprintIDs)
		if err != nil {
			return h.fail(c, err)
		}
		names := make(map[string]string, len(sprints))
		for _, sp := range sprints {
			names[sp.ID] = sp.Name
		}
		for i := range items {
			items[i].SprintName = names[items[i].Task.SprintID]
		}
	}
	return c.JSON(http.StatusOK, items)
}
