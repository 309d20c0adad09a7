package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/ordering"
)

// Fixed partition keys for collections that need whole-collection scans.
const (
	projectsPartition = "projects"
	usersPartition    = "users"
)

const (
	edmInt64  = "Edm.Int64"
	edmDouble = "Edm.Double"
)

// Tables names one Azure table per remote collection.
type Tables struct {
	Projects      string
	Sprints       string
	Tasks         string
	Comments      string
	Users         string
	Notifications string
}

// Storage provides access to the remote document store and the notification
// fan-out queue.
type Storage struct {
	projects      *aztables.Client
	sprints       *aztables.Client
	tasks         *aztables.Client
	comments      *aztables.Client
	users         *aztables.Client
	notifications *aztables.Client
	mentionQueue  *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables, mentionQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	mq, err := azqueue.NewQueueClientFromConnectionString(connStr, mentionQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		projects:      svc.NewClient(tables.Projects),
		sprints:       svc.NewClient(tables.Sprints),
		tasks:         svc.NewClient(tables.Tasks),
		comments:      svc.NewClient(tables.Comments),
		users:         svc.NewClient(tables.Users),
		notifications: svc.NewClient(tables.Notifications),
		mentionQueue:  mq,
	}, nil
}

type taskEntity struct {
	aztables.Entity
	SprintID        string  `json:"SprintId"`
	Title           string  `json:"Title"`
	Description     string  `json:"Description"`
	Type            string  `json:"Type"`
	StoryPoints     int     `json:"StoryPoints"`
	AssigneeID      string  `json:"AssigneeId"`
	AssigneeEmail   string  `json:"AssigneeEmail"`
	Status          string  `json:"Status"`
	Order           float64 `json:"Order"`
	OrderType       string  `json:"Order@odata.type"`
	CreatedAt       int64   `json:"CreatedAt,string"`
	CreatedAtType   string  `json:"CreatedAt@odata.type"`
	CompletedAt     *int64  `json:"CompletedAt,omitempty,string"`
	CompletedAtType *string `json:"CompletedAt@odata.type,omitempty"`
	HasCompletedAt  bool    `json:"HasCompletedAt"`
}

func taskToEntity(t *domain.Task) taskEntity {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: t.ProjectID, RowKey: t.ID},
		SprintID:      t.SprintID,
		Title:         t.Title,
		Description:   t.Description,
		Type:          string(t.Type),
		StoryPoints:   t.StoryPoints,
		AssigneeID:    t.AssigneeID,
		AssigneeEmail: t.AssigneeEmail,
		Status:        string(t.Status),
		Order:         t.Order,
		OrderType:     edmDouble,
		CreatedAt:     t.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	if t.CompletedAt != nil {
		ms := t.CompletedAt.UnixMilli()
		typ := edmInt64
		ent.CompletedAt = &ms
		ent.CompletedAtType = &typ
		ent.HasCompletedAt = true
	}
	return ent
}

func taskFromEntity(ent *taskEntity) domain.Task {
	t := domain.Task{
		ID:            ent.RowKey,
		ProjectID:     ent.PartitionKey,
		SprintID:      ent.SprintID,
		Title:         ent.Title,
		Description:   ent.Description,
		Type:          domain.TaskType(ent.Type),
		StoryPoints:   ent.StoryPoints,
		AssigneeID:    ent.AssigneeID,
		AssigneeEmail: ent.AssigneeEmail,
		Status:        domain.TaskStatus(ent.Status),
		Order:         ent.Order,
		CreatedAt:     time.UnixMilli(ent.CreatedAt).UTC(),
	}
	if ent.HasCompletedAt && ent.CompletedAt != nil {
		ts := time.UnixMilli(*ent.CompletedAt).UTC()
		t.CompletedAt = &ts
	}
	return t
}

// QueryTasks fetches the complete result set for the query, sorted by the
// fractional order key.
func (s *Storage) QueryTasks(ctx context.Context, q TaskQuery) ([]domain.Task, error) {
	filter, err := BuildTaskFilter(q)
	if err != nil {
		return nil, err
	}
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, taskFromEntity(&ent))
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

// GetTask fetches a single task document.
func (s *Storage) GetTask(ctx context.Context, projectID, taskID string) (*domain.Task, error) {
	resp, err := s.tasks.GetEntity(ctx, projectID, taskID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	t := taskFromEntity(&ent)
	return &t, nil
}

// InsertTask writes a new task document.
func (s *Storage) InsertTask(ctx context.Context, t *domain.Task) error {
	data, err := json.Marshal(taskToEntity(t))
	if err != nil {
		return err
	}
	_, err = s.tasks.AddEntity(ctx, data, nil)
	return err
}

type taskUpdateEntity struct {
	aztables.Entity
	SprintID        *string  `json:"SprintId,omitempty"`
	Title           *string  `json:"Title,omitempty"`
	Description     *string  `json:"Description,omitempty"`
	Type            *string  `json:"Type,omitempty"`
	StoryPoints     *int     `json:"StoryPoints,omitempty"`
	AssigneeID      *string  `json:"AssigneeId,omitempty"`
	AssigneeEmail   *string  `json:"AssigneeEmail,omitempty"`
	Status          *string  `json:"Status,omitempty"`
	Order           *float64 `json:"Order,omitempty"`
	OrderType       *string  `json:"Order@odata.type,omitempty"`
	CompletedAt     *int64   `json:"CompletedAt,omitempty,string"`
	CompletedAtType *string  `json:"CompletedAt@odata.type,omitempty"`
	HasCompletedAt  *bool    `json:"HasCompletedAt,omitempty"`
}

// UpdateTask merges a partial update into an existing task document.
func (s *Storage) UpdateTask(ctx context.Context, projectID, taskID string, p domain.TaskPatch) error {
	upd := taskUpdateEntity{Entity: aztables.Entity{PartitionKey: projectID, RowKey: taskID}}
	upd.SprintID = p.SprintID
	upd.Title = p.Title
	upd.Description = p.Description
	if p.Type != nil {
		v := string(*p.Type)
		upd.Type = &v
	}
	upd.StoryPoints = p.StoryPoints
	upd.AssigneeID = p.AssigneeID
	upd.AssigneeEmail = p.AssigneeEmail
	if p.Status != nil {
		v := string(*p.Status)
		upd.Status = &v
	}
	if p.Order != nil {
		typ := edmDouble
		upd.Order = p.Order
		upd.OrderType = &typ
	}
	if p.ClearCompletedAt {
		f := false
		upd.HasCompletedAt = &f
	} else if p.CompletedAt != nil {
		ms := p.CompletedAt.UnixMilli()
		typ := edmInt64
		tr := true
		upd.CompletedAt = &ms
		upd.CompletedAtType = &typ
		upd.HasCompletedAt = &tr
	}
	data, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	_, err = s.tasks.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// DeleteTask removes a task document.
func (s *Storage) DeleteTask(ctx context.Context, projectID, taskID string) error {
	_, err := s.tasks.DeleteEntity(ctx, projectID, taskID, nil)
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// ApplyOrderBatch renumbers a board partition in a single transaction, so
// concurrent readers observe either the old or the new numbering, never a
// mix. All tasks of a project share one partition key, which is what the
// table transaction requires.
func (s *Storage) ApplyOrderBatch(ctx context.Context, projectID string, batch []ordering.Reassignment) error {
	if len(batch) == 0 {
		return nil
	}
	actions := make([]aztables.TransactionAction, 0, len(batch))
	for _, r := range batch {
		typ := edmDouble
		order := r.Order
		upd := taskUpdateEntity{
			Entity:    aztables.Entity{PartitionKey: projectID, RowKey: r.TaskID},
			Order:     &order,
			OrderType: &typ,
		}
		data, err := json.Marshal(upd)
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeUpdateMerge,
			Entity:     data,
		})
	}
	_, err := s.tasks.SubmitTransaction(ctx, actions, nil)
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
