// Package notifications delivers realtime events to connected users over
// Redis pub/sub and WebSocket.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"timeout/internal/middleware"
	"timeout/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Realtime event types.
const (
	EventSaved      = "event_saved"
	EventDeleted    = "event_deleted"
	MessageReceived = "message_received"
	PostLiked       = "post_liked"
	CommentAdded    = "comment_added"
	NewFollower     = "new_follower"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
)

// Envelope is the JSON frame pushed to clients.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Notifier publishes envelopes to per-user channels. Without Redis it hands
// them straight to the local sink, if one is attached.
type Notifier struct {
	rdb   *redis.Client
	local func(channel, payload string)
}

// NewNotifier creates a Notifier. rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// AttachLocal sets the in-process delivery used when Redis is absent.
func (n *Notifier) AttachLocal(sink func(channel, payload string)) {
	n.local = sink
}

// Notify sends a typed event to one user.
func (n *Notifier) Notify(ctx context.Context, userID uint, eventType string, payload interface{}) error {
	if n == nil || userID == 0 {
		return nil
	}
	b, err := json.Marshal(Envelope{Type: eventType, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()
	return n.PublishUser(ctx, userID, string(b))
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	return n.publish(ctx, UserChannel(userID), payload)
}

// PublishBroadcast sends a raw payload to every connected user.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	return n.publish(ctx, broadcastChannel, payload)
}

func (n *Notifier) publish(ctx context.Context, channel, payload string) error {
	if n.rdb == nil {
		if n.local != nil {
			n.local(channel, payload)
		}
		return nil
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// StartPatternSubscriber forwards every user and broadcast message to
// onMessage until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	// Wait for the subscription confirmation so publishes right after start are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deliver(msg.Channel, msg.Payload, onMessage)
			}
		}
	}()
	return nil
}

func deliver(channel, payload string, onMessage func(channel, payload string)) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in notification subscriber",
				"channel", channel, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	onMessage(channel, payload)
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// parseUserChannel is the inverse of UserChannel.
func parseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
