package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

type commentEntity struct {
	aztables.Entity
	AuthorID      string `json:"AuthorId"`
	AuthorEmail   string `json:"AuthorEmail"`
	Content       string `json:"Content"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// ListComments returns a task's comments ordered by creation time ascending.
func (s *Storage) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	filter := "PartitionKey eq '" + escapeQuotes(taskID) + "'"
	pager := s.comments.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	comments := []domain.Comment{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent commentEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			comments = append(comments, domain.Comment{
				ID:          ent.RowKey,
				TaskID:      ent.PartitionKey,
				AuthorID:    ent.AuthorID,
				AuthorEmail: ent.AuthorEmail,
				Content:     ent.Content,
				CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
			})
		}
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

// GetComment fetches one comment of a task.
func (s *Storage) GetComment(ctx context.Context, taskID, commentID string) (*domain.Comment, error) {
	resp, err := s.comments.GetEntity(ctx, taskID, commentID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var ent commentEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	c := domain.Comment{
		ID:          ent.RowKey,
		TaskID:      ent.PartitionKey,
		AuthorID:    ent.AuthorID,
		AuthorEmail: ent.AuthorEmail,
		Content:     ent.Content,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
	}
	return &c, nil
}

// InsertComment writes a new comment document.
func (s *Storage) InsertComment(ctx context.Context, c *domain.Comment) error {
	ent := commentEntity{
		Entity:        aztables.Entity{PartitionKey: c.TaskID, RowKey: c.ID},
		AuthorID:      c.AuthorID,
		AuthorEmail:   c.AuthorEmail,
		Content:       c.Content,
		CreatedAt:     c.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.comments.AddEntity(ctx, data, nil)
	return err
}

// DeleteComment removes a comment document.
func (s *Storage) DeleteComment(ctx context.Context, taskID, commentID string) error {
	_, err := s.comments.DeleteEntity(ctx, taskID, commentID, nil)
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

type notificationEntity struct {
	aztables.Entity
	Message       string `json:"Message"`
	Link          string `json:"Link"`
	IsRead        bool   `json:"IsRead"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// ListNotifications returns a user's notifications, newest first.
func (s *Storage) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	filter := "PartitionKey eq '" + escapeQuotes(userID) + "'"
	pager := s.notifications.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	out := []domain.Notification{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent notificationEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			out = append(out, domain.Notification{
				ID:        ent.RowKey,
				UserID:    ent.PartitionKey,
				Message:   ent.Message,
				Link:      ent.Link,
				IsRead:    ent.IsRead,
				CreatedAt: time.UnixMilli(ent.CreatedAt).UTC(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// InsertNotification writes a notification document.
func (s *Storage) InsertNotification(ctx context.Context, n *domain.Notification) error {
	ent := notificationEntity{
		Entity:        aztables.Entity{PartitionKey: n.UserID, RowKey: n.ID},
		Message:       n.Message,
		Link:          n.Link,
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.notifications.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// MarkNotificationRead flips the read flag on a notification.
func (s *Storage) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	upd := struct {
		aztables.Entity
		IsRead bool `json:"IsRead"`
	}{
		Entity: aztables.Entity{PartitionKey: userID, RowKey: notificationID},
		IsRead: true,
	}
	data, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	_, err = s.notifications.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}
