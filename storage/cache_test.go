package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

type countingBackend struct {
	calls int
	tasks []domain.Task
}

func (b *countingBackend) QueryTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error) {
	b.calls++
	return b.tasks, nil
}

func newTestCache(t *testing.T, base taskBackend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(base, client, time.Minute), mr
}

func TestCacheCollapsesRepeatQueries(t *testing.T) {
	base := &countingBackend{tasks: []domain.Task{{ID: "a", ProjectID: "p1", Title: "A"}}}
	cache, _ := newTestCache(t, base)
	ctx := context.Background()
	q := TaskQuery{ProjectID: "p1"}

	for i := 0; i < 3; i++ {
		tasks, err := cache.QueryTasks(ctx, q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tasks) != 1 || tasks[0].ID != "a" {
			t.Fatalf("unexpected result: %+v", tasks)
		}
	}
	if base.calls != 1 {
		t.Fatalf("expected one backend scan, got %d", base.calls)
	}
}

func TestCacheEvictDropsProjectSnapshots(t *testing.T) {
	base := &countingBackend{tasks: []domain.Task{{ID: "a", ProjectID: "p1", Title: "A"}}}
	cache, _ := newTestCache(t, base)
	ctx := context.Background()

	sprintQ := TaskQuery{ProjectID: "p1", SprintID: "s1"}
	backlogQ := TaskQuery{ProjectID: "p1", BacklogOnly: true}
	if _, err := cache.QueryTasks(ctx, sprintQ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.QueryTasks(ctx, backlogQ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected two backend scans, got %d", base.calls)
	}

	cache.Evict(ctx, "p1")

	if _, err := cache.QueryTasks(ctx, sprintQ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.QueryTasks(ctx, backlogQ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.calls != 4 {
		t.Fatalf("expected both snapshots refetched, got %d scans", base.calls)
	}
}

func TestCacheEntriesExpire(t *testing.T) {
	base := &countingBackend{tasks: []domain.Task{{ID: "a", ProjectID: "p1"}}}
	cache, mr := newTestCache(t, base)
	ctx := context.Background()
	q := TaskQuery{ProjectID: "p1"}

	if _, err := cache.QueryTasks(ctx, q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.QueryTasks(ctx, q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected refetch after TTL, got %d scans", base.calls)
	}
}

func TestCacheWithoutRedisFallsThrough(t *testing.T) {
	base := &countingBackend{tasks: []domain.Task{{ID: "a", ProjectID: "p1"}}}
	cache := NewCache(base, nil, time.Minute)
	ctx := context.Background()
	q := TaskQuery{ProjectID: "p1"}

	for i := 0; i < 2; i++ {
		if _, err := cache.QueryTasks(ctx, q); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if base.calls != 2 {
		t.Fatalf("expected every query to hit the backend, got %d", base.calls)
	}
}
