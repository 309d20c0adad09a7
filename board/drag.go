package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/ordering"
)

// Droppable list ids that are not status columns.
const (
	ListProductBacklog = "product-backlog"
	ListSprintBacklog  = "sprint-backlog"
)

// DragState tracks the gesture lifecycle.
type DragState int

const (
	StateIdle DragState = iota
	StateDragging
	StateDropped
)

// DropEvent describes where a dragged task was released.
type DropEvent struct {
	TaskID      string `json:"taskId"`
	SourceList  string `json:"sourceList"`
	DestList    string `json:"destList"`
	SourceIndex int    `json:"sourceIndex"`
	DestIndex   int    `json:"destIndex"`
}

// Renumberer submits a whole-partition order rewrite as one atomic batch.
type Renumberer func([]ordering.Reassignment) error

// Engine turns drag-drop gestures into board mutations. It never writes to
// the remote store itself; every transition goes through the controller.
type Engine struct {
	ctrl     *Controller
	sprintID string
	renumber Renumberer
	state    DragState
	dragging string
	now      func() time.Time
}

// NewEngine creates a drag engine over a controller. sprintID is the sprint
// shown by the view; it becomes the target when a task is dropped on the
// sprint backlog and scopes the status columns.
func NewEngine(ctrl *Controller, sprintID string, renumber Renumberer) *Engine {
	return &Engine{ctrl: ctrl, sprintID: sprintID, renumber: renumber, now: time.Now}
}

// State returns the current gesture state.
func (e *Engine) State() DragState { return e.state }

// Begin marks a task as being dragged.
func (e *Engine) Begin(taskID string) error {
	if e.state != StateIdle {
		return fmt.Errorf("drag already in progress for %s", e.dragging)
	}
	if _, ok := e.ctrl.Task(taskID); !ok {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	e.state = StateDragging
	e.dragging = taskID
	return nil
}

// Cancel abandons the gesture without a mutation.
func (e *Engine) Cancel() {
	e.state = StateIdle
	e.dragging = ""
}

// Drop completes the gesture. It returns the mutation id of the issued board
// mutation, or "" when the drop is a no-op.
func (e *Engine) Drop(ev DropEvent) (string, error) {
	if e.state != StateDragging || e.dragging != ev.TaskID {
		return "", fmt.Errorf("no drag in progress for task %s", ev.TaskID)
	}
	e.state = StateDropped
	defer func() {
		e.state = StateIdle
		e.dragging = ""
	}()

	if ev.SourceIndex < 0 || ev.DestIndex < 0 {
		return "", fmt.Errorf("%w: negative drop index", domain.ErrValidation)
	}

	if ev.SourceList == ev.DestList && ev.SourceIndex == ev.DestIndex {
		return "", nil
	}

	task, ok := e.ctrl.Task(ev.TaskID)
	if !ok {
		return "", fmt.Errorf("%w: task %s", domain.ErrNotFound, ev.TaskID)
	}

	patch := domain.TaskPatch{}
	if ev.SourceList != ev.DestList {
		e.crossListFields(&task, ev.DestList, &patch)
	}

	order, err := e.placeAt(ev)
	if err != nil {
		return "", err
	}
	patch.Order = &order

	return e.ctrl.BeginMutation(ev.TaskID, patch)
}

// crossListFields derives the discriminant fields implied by the destination
// list and keeps the completedAt/status invariant intact.
func (e *Engine) crossListFields(task *domain.Task, destList string, patch *domain.TaskPatch) {
	switch destList {
	case ListSprintBacklog:
		sprint := e.sprintID
		patch.SprintID = &sprint
	case ListProductBacklog:
		none := ""
		patch.SprintID = &none
	default:
		status := domain.TaskStatus(destList)
		patch.Status = &status
		if status == domain.StatusDone && task.Status != domain.StatusDone {
			now := e.now()
			patch.CompletedAt = &now
		}
		if status != domain.StatusDone && task.Status == domain.StatusDone {
			patch.ClearCompletedAt = true
		}
	}
}

// placeAt computes the order key for the destination slot, renumbering the
// destination partition once when precision is exhausted.
func (e *Engine) placeAt(ev DropEvent) (float64, error) {
	order, err := e.between(ev)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrConflictNormalizationRequired) {
		return 0, err
	}
	if e.renumber == nil {
		return 0, err
	}

	batch := ordering.Renumber(e.listTasks(ev.DestList))
	if err := e.renumber(batch); err != nil {
		return 0, fmt.Errorf("%w: renumber: %v", domain.ErrMutationFailed, err)
	}
	e.ctrl.ApplyOrderReassignments(batch)

	return e.between(ev)
}

func (e *Engine) between(ev DropEvent) (float64, error) {
	dest := e.listTasks(ev.DestList)
	if ev.SourceList == ev.DestList {
		dest = withoutTask(dest, ev.TaskID)
	}
	orders := make([]float64, len(dest))
	for i := range dest {
		orders[i] = dest[i].Order
	}
	index := ev.DestIndex
	if index < 0 {
		index = 0
	}
	if index > len(orders) {
		index = len(orders)
	}
	prev, next := ordering.Neighbors(orders, index)
	return ordering.Between(prev, next)
}

// listTasks filters the visible view down to one droppable list, sorted by
// order key.
func (e *Engine) listTasks(listID string) []domain.Task {
	all := e.ctrl.Tasks()
	out := make([]domain.Task, 0, len(all))
	for _, t := range all {
		switch listID {
		case ListProductBacklog:
			if t.SprintID == "" {
				out = append(out, t)
			}
		case ListSprintBacklog:
			if t.SprintID == e.sprintID {
				out = append(out, t)
			}
		default:
			if t.SprintID == e.sprintID && t.Status == domain.TaskStatus(listID) {
				out = append(out, t)
			}
		}
	}
	return out
}

func withoutTask(tasks []domain.Task, id string) []domain.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
