package storage

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

// mentionMessage is the queue payload produced when a comment mentions users.
type mentionMessage struct {
	Notifications []domain.Notification `json:"notifications"`
}

// EnqueueMentionNotifications hands notification documents to the fan-out
// queue. Materializing them is decoupled from the comment write so a slow or
// failing notification path never blocks commenting.
func (s *Storage) EnqueueMentionNotifications(ctx context.Context, ns []domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	data, err := json.Marshal(mentionMessage{Notifications: ns})
	if err != nil {
		return err
	}
	_, err = s.mentionQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// ProcessMentionQueue drains the notification queue until ctx is cancelled,
// inserting one notification document per mentioned user. Poison messages
// are deleted after logging so they cannot wedge the queue.
func (s *Storage) ProcessMentionQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.mentionQueue.DequeueMessage(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("dequeue mention message: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(resp.Messages) == 0 {
			time.Sleep(time.Second)
			continue
		}
		msg := resp.Messages[0]
		if msg.MessageText != nil {
			var m mentionMessage
			if err := json.Unmarshal([]byte(*msg.MessageText), &m); err != nil {
				log.Errorf("parse mention message: %v", err)
			} else {
				for i := range m.Notifications {
					if err := s.InsertNotification(ctx, &m.Notifications[i]); err != nil {
						log.Errorf("insert notification for %s: %v", m.Notifications[i].UserID, err)
					}
				}
			}
		}
		if msg.MessageID != nil && msg.PopReceipt != nil {
			if _, err := s.mentionQueue.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil); err != nil {
				log.Errorf("delete mention message: %v", err)
			}
		}
	}
}
