// AngelaMos | 2026
// broadcaster.go

package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// Broadcaster publishes tree-planted events. With a Redis client the event
// goes through the shared channel so every instance relays it to its own
// hub; without one, or when the publish fails, only the local hub sees it.
type Broadcaster struct {
	hub      *Hub
	redis    *redis.Client
	channel  string
	timeout  time.Duration
	inflight sync.WaitGroup
	logger   *slog.Logger
}

func NewBroadcaster(
	hub *Hub,
	client *redis.Client,
	channel string,
	logger *slog.Logger,
) *Broadcaster {
	return &Broadcaster{
		hub:     hub,
		redis:   client,
		channel: channel,
		timeout: publishTimeout,
		logger:  logger,
	}
}

// PublishTreePlanted hands the event to a background publish and returns
// at once. The publish outlives ctx's cancellation but not the timeout.
func (b *Broadcaster) PublishTreePlanted(
	ctx context.Context,
	missionID int64,
	x, y float64,
) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.publish(context.WithoutCancel(ctx), missionID, x, y)
	}()
}

// Wait blocks until every queued publish has finished.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}

func (b *Broadcaster) publish(
	ctx context.Context,
	missionID int64,
	x, y float64,
) {
	payload, err := json.Marshal(Event{
		Type:      EventTreePlanted,
		MissionID: missionID,
		X:         x,
		Y:         y,
	})
	if err != nil {
		b.logger.Error("encode realtime event", "error", err)
		return
	}

	if b.redis == nil {
		b.deliver(payload)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.redis.Publish(pubCtx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("realtime publish failed, delivering locally",
			"mission_id", missionID,
			"error", err,
		)
		b.deliver(payload)
	}
}

// Relay forwards messages from sub to the local hub until ctx is done or
// the subscription closes.
func (b *Broadcaster) Relay(ctx context.Context, sub *redis.PubSub) {
	defer func() {
		_ = sub.Close() //nolint:errcheck // shutting down
	}()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.deliver([]byte(msg.Payload))
		}
	}
}

func (b *Broadcaster) deliver(payload []byte) {
	dashboards := b.hub.Broadcast(GroupDashboard, payload)
	mobiles := b.hub.Broadcast(GroupMobile, payload)

	b.logger.Debug("realtime event delivered",
		"dashboard", dashboards,
		"mobile", mobiles,
	)
}
