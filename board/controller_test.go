package board

import (
	"errors"
	"testing"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

func statusPatch(s domain.TaskStatus) domain.TaskPatch {
	return domain.TaskPatch{Status: &s}
}

func TestSnapshotReplacesConfirmedTasks(t *testing.T) {
	c := NewController(nil, nil)
	c.ApplyRemoteSnapshot([]domain.Task{
		{ID: "t1", Status: domain.StatusToDo, Order: 0},
		{ID: "t2", Status: domain.StatusToDo, Order: 1},
	})

	c.ApplyRemoteSnapshot([]domain.Task{
		{ID: "t1", Status: domain.StatusInProgress, Order: 0},
	})

	tasks := c.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("snapshot is a full replacement, expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Status != domain.StatusInProgress {
		t.Fatalf("expected remote value applied, got %s", tasks[0].Status)
	}
}

func TestStaleSnapshotDoesNotClobberPendingMutation(t *testing.T) {
	c := NewController(nil, nil)
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusInProgress}})

	id, err := c.BeginMutation("t1", statusPatch(domain.StatusDone))
	if err != nil {
		t.Fatalf("begin mutation: %v", err)
	}

	// A stale remote snapshot arrives before the write is acknowledged.
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusInProgress}})

	got, _ := c.Task("t1")
	if got.Status != domain.StatusDone {
		t.Fatalf("pending optimistic value overwritten by stale snapshot: %s", got.Status)
	}

	if err := c.ResolveMutation(id, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// After resolution the next remote snapshot applies normally.
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusReview}})
	got, _ = c.Task("t1")
	if got.Status != domain.StatusReview {
		t.Fatalf("post-resolve snapshot not applied: %s", got.Status)
	}
}

func TestResolveFailureRollsBack(t *testing.T) {
	c := NewController(nil, nil)
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusToDo, StoryPoints: 3}})

	id, err := c.BeginMutation("t1", statusPatch(domain.StatusDone))
	if err != nil {
		t.Fatalf("begin mutation: %v", err)
	}

	resolveErr := c.ResolveMutation(id, errors.New("write rejected"))
	if !errors.Is(resolveErr, domain.ErrMutationFailed) {
		t.Fatalf("expected ErrMutationFailed, got %v", resolveErr)
	}

	got, _ := c.Task("t1")
	if got.Status != domain.StatusToDo {
		t.Fatalf("task not reverted to last confirmed value: %s", got.Status)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("pending entry not cleared, %d left", c.PendingCount())
	}
}

func TestLastLocalMutationWins(t *testing.T) {
	c := NewController(nil, nil)
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusToDo}})

	first, err := c.BeginMutation("t1", statusPatch(domain.StatusInProgress))
	if err != nil {
		t.Fatalf("begin first: %v", err)
	}
	second, err := c.BeginMutation("t1", statusPatch(domain.StatusReview))
	if err != nil {
		t.Fatalf("begin second: %v", err)
	}

	// A slow failure callback for the superseded mutation must not roll back
	// the newer local edit.
	if err := c.ResolveMutation(first, errors.New("late failure")); err != nil {
		t.Fatalf("superseded resolve should be dropped, got %v", err)
	}
	got, _ := c.Task("t1")
	if got.Status != domain.StatusReview {
		t.Fatalf("newer local mutation lost: %s", got.Status)
	}

	if err := c.ResolveMutation(second, nil); err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	if c.PendingCount() != 0 {
		t.Fatalf("pending entries left: %d", c.PendingCount())
	}
}

func TestBufferedRemoteAppliedAfterFailedResolve(t *testing.T) {
	c := NewController(nil, nil)
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusToDo}})

	id, err := c.BeginMutation("t1", statusPatch(domain.StatusDone))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	// Another client moved the task while ours was pending.
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusInProgress}})

	if rerr := c.ResolveMutation(id, errors.New("conflict")); !errors.Is(rerr, domain.ErrMutationFailed) {
		t.Fatalf("expected ErrMutationFailed, got %v", rerr)
	}
	got, _ := c.Task("t1")
	if got.Status != domain.StatusToDo {
		t.Fatalf("rollback must target the last confirmed value, got %s", got.Status)
	}
}

func TestBeginMutationUnknownTask(t *testing.T) {
	c := NewController(nil, nil)
	if _, err := c.BeginMutation("ghost", statusPatch(domain.StatusDone)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitterReceivesMutation(t *testing.T) {
	var got []Mutation
	c := NewController(func(m Mutation) { got = append(got, m) }, nil)
	c.ApplyRemoteSnapshot([]domain.Task{{ID: "t1", Status: domain.StatusToDo}})

	id, err := c.BeginMutation("t1", statusPatch(domain.StatusDone))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].TaskID != "t1" {
		t.Fatalf("submitter saw %+v, expected mutation %s for t1", got, id)
	}
}
