package domain

import (
	"testing"
	"time"
)

func TestPatchApplyClearWinsOverCompletedAt(t *testing.T) {
	now := time.Now()
	task := Task{ID: "t1", Status: StatusDone, CompletedAt: &now}

	ts := now.Add(time.Hour)
	p := TaskPatch{CompletedAt: &ts, ClearCompletedAt: true}
	p.Apply(&task)
	if task.CompletedAt != nil {
		t.Fatalf("expected completedAt cleared, got %v", task.CompletedAt)
	}
}

func TestPatchApplyMovesToBacklog(t *testing.T) {
	task := Task{ID: "t1", SprintID: "s1"}
	none := ""
	p := TaskPatch{SprintID: &none}
	p.Apply(&task)
	if task.SprintID != "" {
		t.Fatalf("expected backlog move, got %q", task.SprintID)
	}
}

func TestPatchApplyLeavesUnsetFields(t *testing.T) {
	task := Task{ID: "t1", Title: "Keep", StoryPoints: 5}
	points := 8
	p := TaskPatch{StoryPoints: &points}
	p.Apply(&task)
	if task.Title != "Keep" || task.StoryPoints != 8 {
		t.Fatalf("unexpected result: %+v", task)
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(TaskPatch{}).IsZero() {
		t.Fatal("empty patch must report zero")
	}
	title := "x"
	if (TaskPatch{Title: &title}).IsZero() {
		t.Fatal("non-empty patch must not report zero")
	}
	if (TaskPatch{ClearCompletedAt: true}).IsZero() {
		t.Fatal("clear flag alone is a change")
	}
}
