package storage

import (
	"context"
	"fmt"
	"testing"
)

func TestQuerySprintsInEmptySet(t *testing.T) {
	var s Storage
	sprints, err := s.QuerySprintsIn(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sprints) != 0 {
		t.Fatalf("expected empty result, got %d", len(sprints))
	}
}

func TestQuerySprintsInRejectsWideSet(t *testing.T) {
	ids := make([]string, MaxInValues+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
	}
	var s Storage
	if _, err := s.QuerySprintsIn(context.Background(), ids); err == nil {
		t.Fatal("expected error for in filter above the value cap")
	}
}
