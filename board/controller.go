// Package board holds the per-view reconciliation core: an authoritative task
// list merged from remote snapshots and in-flight optimistic mutations, plus
// the drag-drop transition engine that feeds it.
package board

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/ordering"
)

// Mutation is an optimistic write handed to the submitter. The submitter must
// eventually call ResolveMutation with the write outcome, or the pending entry
// keeps shielding the task from remote snapshots.
type Mutation struct {
	ID     string
	TaskID string
	Patch  domain.TaskPatch
}

// Submitter issues the remote write for a mutation asynchronously.
type Submitter func(Mutation)

type pendingMutation struct {
	id  string
	seq uint64
}

// Controller reconciles remote snapshots with local optimistic mutations for
// one board view. The visible value for a task is always either the latest
// confirmed remote value or a not-yet-acknowledged local mutation, never a
// stale value superseded by a newer local edit.
//
// All methods are safe for the view's single logical thread plus the async
// resolve callbacks.
type Controller struct {
	mu sync.Mutex

	visible   map[string]domain.Task
	confirmed map[string]domain.Task
	// pending holds at most one entry per task: a newer local mutation
	// supersedes the older one, and resolve callbacks for superseded
	// mutation ids are ignored.
	pending    map[string]pendingMutation
	byMutation map[string]string
	// buffered keeps remote values that arrived while a mutation was
	// pending; they are reconsidered once the pending entry clears.
	buffered map[string]domain.Task

	seq    uint64
	submit Submitter
	logger *log.Logger
}

// NewController creates a board view controller. submit may be nil when the
// caller resolves mutations itself (tests, synchronous paths).
func NewController(submit Submitter, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		visible:    map[string]domain.Task{},
		confirmed:  map[string]domain.Task{},
		pending:    map[string]pendingMutation{},
		byMutation: map[string]string{},
		buffered:   map[string]domain.Task{},
		submit:     submit,
		logger:     logger,
	}
}

// ApplyRemoteSnapshot replaces the view with an authoritative result set.
// Tasks with a pending mutation keep their optimistic value; the remote value
// is buffered until the mutation resolves. Tasks absent from the snapshot are
// dropped unless locally pending.
func (c *Controller) ApplyRemoteSnapshot(tasks []domain.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remote := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		remote[t.ID] = t
	}

	for id := range c.visible {
		if _, stillPending := c.pending[id]; stillPending {
			continue
		}
		if _, ok := remote[id]; !ok {
			delete(c.visible, id)
			delete(c.confirmed, id)
			delete(c.buffered, id)
		}
	}

	for id, t := range remote {
		if _, stillPending := c.pending[id]; stillPending {
			c.buffered[id] = t
			continue
		}
		c.visible[id] = t
		c.confirmed[id] = t
	}
}

// Tasks returns the visible task list sorted by the fractional order key.
func (c *Controller) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Task, 0, len(c.visible))
	for _, t := range c.visible {
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Task returns the visible value for one task id.
func (c *Controller) Task(id string) (domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.visible[id]
	return t, ok
}

// BeginMutation applies the patch optimistically, records it as pending, and
// hands the write to the submitter. A newer mutation to the same task
// supersedes any older pending one.
func (c *Controller) BeginMutation(taskID string, patch domain.TaskPatch) (string, error) {
	c.mu.Lock()
	t, ok := c.visible[taskID]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}

	patch.Apply(&t)
	c.visible[taskID] = t

	c.seq++
	m := Mutation{ID: uuid.NewString(), TaskID: taskID, Patch: patch}
	if old, ok := c.pending[taskID]; ok {
		delete(c.byMutation, old.id)
	}
	c.pending[taskID] = pendingMutation{id: m.ID, seq: c.seq}
	c.byMutation[m.ID] = taskID
	submit := c.submit
	c.mu.Unlock()

	if submit != nil {
		submit(m)
	}
	return m.ID, nil
}

// ResolveMutation records the write outcome. Outcomes for superseded mutation
// ids are dropped: only the most recent local mutation for a task may confirm
// or roll it back. On failure the task reverts to its last confirmed remote
// value and the error is returned wrapped in ErrMutationFailed.
func (c *Controller) ResolveMutation(mutationID string, outcome error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	taskID, ok := c.byMutation[mutationID]
	if !ok {
		c.logger.Debugf("resolve for unknown mutation %s dropped", mutationID)
		return nil
	}
	p := c.pending[taskID]
	if p.id != mutationID {
		// Cannot happen while byMutation is pruned on supersede, but a stale
		// callback after teardown-and-rebuild must still be ignored.
		delete(c.byMutation, mutationID)
		return nil
	}

	delete(c.pending, taskID)
	delete(c.byMutation, mutationID)
	remote, hadRemote := c.buffered[taskID]
	delete(c.buffered, taskID)

	if outcome != nil {
		if confirmed, ok := c.confirmed[taskID]; ok {
			c.visible[taskID] = confirmed
		} else if hadRemote {
			c.visible[taskID] = remote
			c.confirmed[taskID] = remote
		} else {
			delete(c.visible, taskID)
		}
		return fmt.Errorf("%w: %v", domain.ErrMutationFailed, outcome)
	}

	// The write is confirmed; the optimistic value is now the best known
	// remote truth until the next snapshot replaces it.
	c.confirmed[taskID] = c.visible[taskID]
	return nil
}

// Track registers a locally created task that the remote store does not know
// yet, so the view can show it before the create write round-trips.
func (c *Controller) Track(t domain.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible[t.ID] = t
	c.confirmed[t.ID] = t
}

// ApplyOrderReassignments records the outcome of an atomic renumbering batch.
// The batch was submitted as one transaction, so the new keys are treated as
// confirmed remote values.
func (c *Controller) ApplyOrderReassignments(batch []ordering.Reassignment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range batch {
		if t, ok := c.visible[r.TaskID]; ok {
			t.Order = r.Order
			c.visible[r.TaskID] = t
		}
		if t, ok := c.confirmed[r.TaskID]; ok {
			t.Order = r.Order
			c.confirmed[r.TaskID] = t
		}
		if t, ok := c.buffered[r.TaskID]; ok {
			t.Order = r.Order
			c.buffered[r.TaskID] = t
		}
	}
}

// PendingCount reports how many mutations await resolution.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
