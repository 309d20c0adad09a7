package api

import (
	"context"

	"github.com/CODEGENANDTEAM/SCRUM-manager/authz"
	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/ordering"
	"github.com/CODEGENANDTEAM/SCRUM-manager/storage"
	"github.com/CODEGENANDTEAM/SCRUM-manager/subscription"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	GetTask(ctx context.Context, projectID, taskID string) (*domain.Task, error)
	InsertTask(ctx context.Context, t *domain.Task) error
	UpdateTask(ctx context.Context, projectID, taskID string, p domain.TaskPatch) error
	DeleteTask(ctx context.Context, projectID, taskID string) error
	ApplyOrderBatch(ctx context.Context, projectID string, batch []ordering.Reassignment) error

	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	QueryProjects(ctx context.Context, uid string) ([]domain.Project, error)
	UpsertProject(ctx context.Context, p *domain.Project) error
	DeleteProject(ctx context.Context, projectID string) error

	GetSprint(ctx context.Context, projectID, sprintID string) (*domain.Sprint, error)
	QuerySprints(ctx context.Context, projectID string) ([]domain.Sprint, error)
	QuerySprintsIn(ctx context.Context, sprintIDs []string) ([]domain.Sprint, error)
	UpsertSprint(ctx context.Context, sp *domain.Sprint) error

	GetUser(ctx context.Context, uid string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error

	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	GetComment(ctx context.Context, taskID, commentID string) (*domain.Comment, error)
	InsertComment(ctx context.Context, c *domain.Comment) error
	DeleteComment(ctx context.Context, taskID, commentID string) error

	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	EnqueueMentionNotifications(ctx context.Context, ns []domain.Notification) error
}

// TaskSource serves task list reads, normally through the snapshot cache.
type TaskSource interface {
	QueryTasks(ctx context.Context, q storage.TaskQuery) ([]domain.Task, error)
	Evict(ctx context.Context, projectID string)
}

// Publisher announces document changes on the change feed.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent)
}

// Streams opens live queries for the streaming endpoint.
type Streams interface {
	Subscribe(ctx context.Context, q storage.TaskQuery) (*subscription.Subscription, error)
}

// Authenticator is implemented by types able to extract sessions from headers.
type Authenticator interface {
	SessionFromAuthHeader(string) (authz.Session, error)
}

// Deduper prevents reprocessing of duplicate write requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}
