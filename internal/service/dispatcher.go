package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
	"github.com/noah-isme/internhub-api/internal/observability"
)

// Fan-out transports, see Dispatcher.Transport.
const (
	TransportLocal = "local"
	TransportRedis = "redis"
	TransportNATS  = "nats"
)

const (
	redisRetryMin = 100 * time.Millisecond
	redisRetryMax = 5 * time.Second
)

// Dispatcher pushes new-message events to the recipient's live channel. Delivery is best effort:
// no retry, no queue. When Redis or NATS is configured, events for recipients that are not
// connected to this node are forwarded to the other nodes over exactly one of them; NATS wins
// when both are set.
type Dispatcher struct {
	registry     *ConnectionRegistry
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
}

type deliveryEvent struct {
	Source      string            `json:"source"`
	RecipientID uint              `json:"recipient_id"`
	Event       dto.RealtimeEvent `json:"event"`
	SentAt      time.Time         `json:"sent_at"`
}

// NewDispatcher creates a dispatcher over registry. redisClient and natsConn may be nil.
func NewDispatcher(registry *ConnectionRegistry, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Dispatcher {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":messages"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".messages"
	}

	logger = logger.With().Str("component", "dispatcher").Logger()
	if redisClient != nil && natsConn != nil {
		logger.Warn().Msg("both redis and nats configured; realtime fan-out uses nats only")
		redisClient = nil
	}

	return &Dispatcher{
		registry:     registry,
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		logger:       logger,
		nodeID:       uuid.NewString(),
	}
}

// Transport names the fan-out transport in use.
func (d *Dispatcher) Transport() string {
	switch {
	case d.nats != nil && d.natsSubject != "":
		return TransportNATS
	case d.redis != nil && d.redisChannel != "":
		return TransportRedis
	default:
		return TransportLocal
	}
}

// Start runs the cross-node consumer until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	switch d.Transport() {
	case TransportNATS:
		d.consumeNATS(ctx)
	case TransportRedis:
		go d.consumeRedis(ctx)
	}
}

// NotifyNewMessage pushes message to the participant who did not send it.
func (d *Dispatcher) NotifyNewMessage(ctx context.Context, conversation models.Conversation, message dto.MessageResponse) {
	recipientID := conversation.Counterpart(message.SenderID)
	if recipientID == 0 {
		return
	}

	event := dto.NewMessageEvent(message)
	result := d.deliverLocal(recipientID, event)
	observability.RealtimePush().WithLabelValues(result).Inc()

	if result == observability.PushDelivered {
		return
	}

	if err := d.publish(ctx, recipientID, event); err != nil {
		d.logger.Warn().Err(err).Uint("recipient_id", recipientID).Msg("failed to forward realtime event")
	}
}

func (d *Dispatcher) deliverLocal(recipientID uint, event dto.RealtimeEvent) string {
	channel, ok := d.registry.Lookup(recipientID)
	if !ok || !channel.IsOpen() {
		return observability.PushOffline
	}

	if err := channel.Send(event); err != nil {
		d.logger.Debug().Err(err).Uint("recipient_id", recipientID).Msg("realtime push failed")
		return observability.PushFailed
	}
	return observability.PushDelivered
}

func (d *Dispatcher) publish(ctx context.Context, recipientID uint, event dto.RealtimeEvent) error {
	transport := d.Transport()
	if transport == TransportLocal {
		return nil
	}

	payload, err := json.Marshal(deliveryEvent{
		Source:      d.nodeID,
		RecipientID: recipientID,
		Event:       event,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if transport == TransportNATS {
		return d.nats.Publish(d.natsSubject, payload)
	}
	return d.redis.Publish(ctx, d.redisChannel, payload).Err()
}

func (d *Dispatcher) consumeRedis(ctx context.Context) {
	pubsub := d.redis.Subscribe(ctx, d.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	backoff := redisRetryMin
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			// the pubsub reconnects and resubscribes on the next receive.
			d.logger.Error().Err(err).Dur("retry_in", backoff).Msg("realtime redis subscription interrupted")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > redisRetryMax {
				backoff = redisRetryMax
			}
			continue
		}
		backoff = redisRetryMin
		d.handleRemote([]byte(msg.Payload))
	}
}

func (d *Dispatcher) consumeNATS(ctx context.Context) {
	// Plain subscription: every node must see the event since only one of them holds the socket.
	sub, err := d.nats.Subscribe(d.natsSubject, func(msg *nats.Msg) {
		d.handleRemote(msg.Data)
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (d *Dispatcher) handleRemote(payload []byte) {
	var event deliveryEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		d.logger.Warn().Err(err).Msg("invalid realtime event payload")
		return
	}

	if event.Source == d.nodeID || event.RecipientID == 0 {
		return
	}

	if d.deliverLocal(event.RecipientID, event.Event) == observability.PushDelivered {
		observability.RealtimePush().WithLabelValues(observability.PushRemote).Inc()
	}
}
