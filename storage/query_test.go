package storage

import (
	"fmt"
	"testing"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

func TestBuildTaskFilterSprint(t *testing.T) {
	filter, err := BuildTaskFilter(TaskQuery{ProjectID: "p1", SprintID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "PartitionKey eq 'p1' and SprintId eq 's1'"
	if filter != want {
		t.Fatalf("unexpected filter: %q", filter)
	}
}

func TestBuildTaskFilterBacklog(t *testing.T) {
	filter, err := BuildTaskFilter(TaskQuery{ProjectID: "p1", BacklogOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "PartitionKey eq 'p1' and SprintId eq ''"
	if filter != want {
		t.Fatalf("unexpected filter: %q", filter)
	}
}

func TestBuildTaskFilterSprintIn(t *testing.T) {
	filter, err := BuildTaskFilter(TaskQuery{ProjectID: "p1", SprintIDs: []string{"s1", "s2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "PartitionKey eq 'p1' and (SprintId eq 's1' or SprintId eq 's2')"
	if filter != want {
		t.Fatalf("unexpected filter: %q", filter)
	}
}

func TestBuildTaskFilterEscapesQuotes(t *testing.T) {
	filter, err := BuildTaskFilter(TaskQuery{ProjectID: "o'brien"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter != "PartitionKey eq 'o''brien'" {
		t.Fatalf("unexpected filter: %q", filter)
	}
}

func TestValidateRejectsWideInFilter(t *testing.T) {
	ids := make([]string, MaxInValues+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
	}
	if err := (TaskQuery{ProjectID: "p1", SprintIDs: ids}).Validate(); err == nil {
		t.Fatal("expected the IN bound to be enforced")
	}
}

func TestValidateRejectsConflictingSprintFilters(t *testing.T) {
	q := TaskQuery{ProjectID: "p1", SprintID: "s1", BacklogOnly: true}
	if err := q.Validate(); err == nil {
		t.Fatal("expected conflicting filters to be rejected")
	}
	q = TaskQuery{ProjectID: "p1", SprintID: "s1", SprintIDs: []string{"s2"}}
	if err := q.Validate(); err == nil {
		t.Fatal("expected conflicting filters to be rejected")
	}
}

func TestValidateRejectsEmptyQuery(t *testing.T) {
	if err := (TaskQuery{}).Validate(); err == nil {
		t.Fatal("expected empty query to be rejected")
	}
}

func TestQueryKeyIsCanonical(t *testing.T) {
	a := TaskQuery{ProjectID: "p1", SprintID: "s1"}
	b := TaskQuery{ProjectID: "p1", SprintID: "s1"}
	if a.Key() != b.Key() {
		t.Fatalf("equal queries must share a key: %q vs %q", a.Key(), b.Key())
	}
	c := TaskQuery{ProjectID: "p1", BacklogOnly: true}
	if a.Key() == c.Key() {
		t.Fatalf("distinct queries must not collide: %q", a.Key())
	}
}

func TestMatchesFiltersByProject(t *testing.T) {
	q := TaskQuery{ProjectID: "p1"}
	if !q.Matches(domain.ChangeEvent{Collection: "tasks", ProjectID: "p1"}) {
		t.Fatal("expected same-project event to match")
	}
	if q.Matches(domain.ChangeEvent{Collection: "tasks", ProjectID: "p2"}) {
		t.Fatal("expected other-project event to be ignored")
	}
	if q.Matches(domain.ChangeEvent{Collection: "projects", ProjectID: "p1"}) {
		t.Fatal("expected non-task event to be ignored")
	}
}

func TestMatchesStaysConservativeForSprintMoves(t *testing.T) {
	// A task moved out of the watched sprint emits an event carrying only its
	// new sprint id; the watched query must still refetch.
	q := TaskQuery{ProjectID: "p1", SprintID: "s1"}
	ev := domain.ChangeEvent{Collection: "tasks", ProjectID: "p1", SprintID: "s2"}
	if !q.Matches(ev) {
		t.Fatal("expected same-project sprint move to match")
	}
	ev.ProjectID = "p2"
	if q.Matches(ev) {
		t.Fatal("expected other-project event to be ignored")
	}
}

func TestMatchesSprintInFilter(t *testing.T) {
	q := TaskQuery{ProjectID: "p1", SprintIDs: []string{"s1", "s2"}}
	if !q.Matches(domain.ChangeEvent{Collection: "tasks", ProjectID: "p1", SprintID: "s2"}) {
		t.Fatal("expected event in the id set to match")
	}
	if q.Matches(domain.ChangeEvent{Collection: "tasks", ProjectID: "p2", SprintID: "s3"}) {
		t.Fatal("expected other-project event to be ignored")
	}
}

func TestMatchesSprintInStaysConservativeForMovesOut(t *testing.T) {
	// A task moved out of a watched sprint set emits an event carrying only
	// its new sprint id; the query must still refetch to drop the stale row.
	q := TaskQuery{ProjectID: "p1", SprintIDs: []string{"s1", "s2"}}
	if !q.Matches(domain.ChangeEvent{Collection: "tasks", ProjectID: "p1", SprintID: "s3"}) {
		t.Fatal("expected same-project move out of the set to match")
	}
	unscoped := TaskQuery{SprintIDs: []string{"s1"}}
	if !unscoped.Matches(domain.ChangeEvent{Collection: "tasks", SprintID: "s9"}) {
		t.Fatal("expected unscoped in-filter to stay conservative")
	}
}
