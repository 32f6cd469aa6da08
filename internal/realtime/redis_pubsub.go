package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "meeting:"
	publishTimeout = 5 * time.Second
)

// RedisPubSub bridges meeting frames across server instances.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for meeting frames.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishMeetingFrame publishes an encoded frame to the meeting's channel.
func (r *RedisPubSub) PublishMeetingFrame(meetingID uuid.UUID, frame []byte) error {
	channel := channelPrefix + meetingID.String()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channel, frame).Err()
}

// SubscribeMeeting subscribes to a meeting's channel and calls handler
// for each frame. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeMeeting(meetingID uuid.UUID, handler func(frame []byte)) (cancel func(), err error) {
	channel := channelPrefix + meetingID.String()
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	_, err = pubsub.Receive(ctx)
	if err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	cancel = func() { cancelCtx() }
	return cancel, nil
}
