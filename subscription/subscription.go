// Package subscription owns live queries against the remote store. Each
// subscription delivers complete result-set snapshots, never diffs: the
// change feed only tells us that something changed, the authoritative data is
// always refetched. A lost feed degrades to stale-but-available delivery and
// recovers with exponential backoff.
package subscription

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/CODEGENANDTEAM/SCRUM-manager/domain"
	"github.com/CODEGENANDTEAM/SCRUM-manager/storage"
)

// Storage fetches full result sets for a live query.
type Storage interface {
	QueryTasks(ctx context.Context, q storage.TaskQuery) ([]domain.Task, error)
}

// Snapshot is a complete result set for one query. Degraded marks a redelivery
// of the last known data while the feed or the store is unreachable.
type Snapshot struct {
	Tasks    []domain.Task
	Seq      uint64
	Degraded bool
}

// Manager creates subscriptions over one change-feed channel.
type Manager struct {
	rc             *redis.Client
	store          Storage
	channel        string
	logger         *log.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewManager wires a subscription manager to the feed channel.
func NewManager(rc *redis.Client, store Storage, channel string, logger *log.Logger) *Manager {
	if channel == "" {
		channel = storage.DefaultFeedChannel
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Manager{
		rc:             rc,
		store:          store,
		channel:        channel,
		logger:         logger,
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     30 * time.Second,
	}
}

// Subscription is one live query. Snapshots conflate: a consumer that falls
// behind sees only the newest snapshot, which is safe because every snapshot
// is a full replacement.
type Subscription struct {
	query  storage.TaskQuery
	ch     chan Snapshot
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Snapshots returns the delivery channel. It is closed after Unsubscribe.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.ch }

// Unsubscribe stops delivery and releases the feed resources. No snapshot is
// delivered after it returns; anything still in flight is discarded.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case s.ch <- snap:
			return
		default:
		}
		// Drop the undelivered older snapshot; the newest one wins.
		select {
		case <-s.ch:
		default:
		}
	}
}

// Subscribe starts a live query and synchronously delivers its first
// snapshot. The caller must Unsubscribe to release the feed subscription.
func (m *Manager) Subscribe(ctx context.Context, q storage.TaskQuery) (*Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	tasks, err := m.store.QueryTasks(ctx, q)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		query:  q,
		ch:     make(chan Snapshot, 1),
		ctx:    subCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	first := Snapshot{Tasks: tasks, Seq: 1}
	sub.ch <- first

	go m.run(sub, first)
	return sub, nil
}

func (m *Manager) run(sub *Subscription, last Snapshot) {
	defer func() {
		// Discard anything the consumer never picked up, then signal that no
		// further delivery can happen.
		for {
			select {
			case <-sub.ch:
				continue
			default:
			}
			break
		}
		close(sub.ch)
		close(sub.done)
	}()

	backoff := m.initialBackoff
	for {
		if sub.ctx.Err() != nil {
			return
		}
		pubsub := m.rc.Subscribe(sub.ctx, m.channel)
		if _, err := pubsub.Receive(sub.ctx); err != nil {
			_ = pubsub.Close()
			if sub.ctx.Err() != nil {
				return
			}
			m.logger.Errorf("feed subscribe %s: %v", sub.query.Key(), err)
			last = m.degrade(sub, last, &backoff)
			continue
		}

		// Refetch after every (re)subscribe so events raised during the gap
		// are not lost.
		snap, err := m.fetch(sub, last)
		if err != nil {
			_ = pubsub.Close()
			if sub.ctx.Err() != nil {
				return
			}
			m.logger.Errorf("snapshot fetch %s: %v", sub.query.Key(), err)
			last = m.degrade(sub, last, &backoff)
			continue
		}
		last = snap
		backoff = m.initialBackoff
		sub.deliver(last)

		if !m.consume(sub, pubsub, &last) {
			return
		}
		_ = pubsub.Close()
		m.logger.Warnf("feed lost for %s, reconnecting", sub.query.Key())
		last = m.degrade(sub, last, &backoff)
	}
}

// consume pumps feed events until the stream breaks (false return means the
// subscription itself ended).
func (m *Manager) consume(sub *Subscription, pubsub *redis.PubSub, last *Snapshot) bool {
	ch := pubsub.Channel()
	for {
		select {
		case <-sub.ctx.Done():
			_ = pubsub.Close()
			return false
		case msg, ok := <-ch:
			if !ok {
				return true
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				m.logger.Errorf("parse change event: %v", err)
				continue
			}
			if !sub.query.Matches(ev) {
				continue
			}
			snap, err := m.fetch(sub, *last)
			if err != nil {
				if sub.ctx.Err() != nil {
					_ = pubsub.Close()
					return false
				}
				m.logger.Errorf("snapshot fetch %s: %v", sub.query.Key(), err)
				return true
			}
			*last = snap
			sub.deliver(snap)
		}
	}
}

func (m *Manager) fetch(sub *Subscription, last Snapshot) (Snapshot, error) {
	tasks, err := m.store.QueryTasks(sub.ctx, sub.query)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Tasks: tasks, Seq: last.Seq + 1}, nil
}

// degrade redelivers the last known snapshot tagged stale and sleeps the
// current backoff, doubling it up to the cap.
func (m *Manager) degrade(sub *Subscription, last Snapshot, backoff *time.Duration) Snapshot {
	last.Degraded = true
	sub.deliver(last)

	timer := time.NewTimer(*backoff)
	defer timer.Stop()
	select {
	case <-sub.ctx.Done():
	case <-timer.C:
	}
	*backoff *= 2
	if *backoff > m.maxBackoff {
		*backoff = m.maxBackoff
	}
	return last
}
