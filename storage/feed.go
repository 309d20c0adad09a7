package storage

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
)

// DefaultFeedChannel is the pub/sub channel change events travel on.
const DefaultFeedChannel = "board-updates"

// Feed publishes change events to every connected client instance. Delivery
// is best effort; subscribers that miss an event recover on their next
// refetch or reconnect.
type Feed struct {
	rc      *redis.Client
	channel string
}

// NewFeed creates a change feed publisher on the given channel.
func NewFeed(rc *redis.Client, channel string) *Feed {
	if channel == "" {
		channel = DefaultFeedChannel
	}
	return &Feed{rc: rc, channel: channel}
}

// Channel returns the pub/sub channel name subscribers should listen on.
func (f *Feed) Channel() string { return f.channel }

// Publish announces a document change. Errors are logged, not returned: the
// write already succeeded and must not be rolled back because fan-out failed.
func (f *Feed) Publish(ctx context.Context, ev domain.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("marshal change event: %v", err)
		return
	}
	if err := f.rc.Publish(ctx, f.channel, data).Err(); err != nil {
		log.Errorf("publish change event: %v", err)
	}
}
