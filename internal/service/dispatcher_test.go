package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internhub-api/internal/dto"
	"github.com/noah-isme/internhub-api/internal/models"
)

func TestDispatcherPushesToCounterpartOnly(t *testing.T) {
	registry := NewConnectionRegistry(zerolog.Nop())
	employer, student := &stubChannel{}, &stubChannel{}
	registry.Register(1, employer)
	registry.Register(2, student)

	dispatcher := NewDispatcher(registry, nil, nil, "", zerolog.Nop())
	conversation := models.Conversation{ID: 10, EmployerID: 1, StudentID: 2}

	dispatcher.NotifyNewMessage(context.Background(), conversation, dto.MessageResponse{ID: 5, ConversationID: 10, SenderID: 2, Content: "thanks"})

	require.Empty(t, student.received())
	events := employer.received()
	require.Len(t, events, 1)
	require.Equal(t, dto.RealtimeTypeNewMessage, events[0].Type)
	require.Equal(t, uint(10), events[0].ConversationID)
	require.Equal(t, "thanks", events[0].Message.Content)
}

func TestDispatcherIgnoresClosedAndMissingChannels(t *testing.T) {
	registry := NewConnectionRegistry(zerolog.Nop())
	closed := &stubChannel{}
	require.NoError(t, closed.Close())
	registry.Register(1, closed)

	dispatcher := NewDispatcher(registry, nil, nil, "", zerolog.Nop())
	conversation := models.Conversation{ID: 10, EmployerID: 1, StudentID: 2}

	require.NotPanics(t, func() {
		dispatcher.NotifyNewMessage(context.Background(), conversation, dto.MessageResponse{ID: 1, ConversationID: 10, SenderID: 2})
		dispatcher.NotifyNewMessage(context.Background(), conversation, dto.MessageResponse{ID: 2, ConversationID: 10, SenderID: 1})
	})
	require.Empty(t, closed.received())
}

func TestDispatcherSkipsSenderOutsideConversation(t *testing.T) {
	registry := NewConnectionRegistry(zerolog.Nop())
	employer := &stubChannel{}
	registry.Register(1, employer)

	dispatcher := NewDispatcher(registry, nil, nil, "", zerolog.Nop())
	dispatcher.NotifyNewMessage(context.Background(), models.Conversation{ID: 3, EmployerID: 1, StudentID: 2}, dto.MessageResponse{SenderID: 99})

	require.Empty(t, employer.received())
}

func TestDispatcherForwardsThroughRedisToOtherNode(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	channelBase := "internhub:test"
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	senderNode := NewDispatcher(NewConnectionRegistry(zerolog.Nop()), newClient(), nil, channelBase, zerolog.Nop())

	remoteRegistry := NewConnectionRegistry(zerolog.Nop())
	student := &stubChannel{}
	remoteRegistry.Register(2, student)
	remoteNode := NewDispatcher(remoteRegistry, newClient(), nil, channelBase, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remoteNode.Start(ctx)
	senderNode.Start(ctx)

	require.Eventually(t, func() bool {
		return mini.PubSubNumSub(channelBase + ":messages")[channelBase+":messages"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	conversation := models.Conversation{ID: 4, EmployerID: 1, StudentID: 2}
	senderNode.NotifyNewMessage(ctx, conversation, dto.MessageResponse{ID: 8, ConversationID: 4, SenderID: 1, Content: "via redis"})

	require.Eventually(t, func() bool {
		return len(student.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "via redis", student.received()[0].Message.Content)
}

func TestDispatcherSelectsSingleTransport(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	defer func() { _ = client.Close() }()
	registry := NewConnectionRegistry(zerolog.Nop())

	require.Equal(t, TransportLocal, NewDispatcher(registry, nil, nil, "internhub", zerolog.Nop()).Transport())
	require.Equal(t, TransportLocal, NewDispatcher(registry, client, nil, "", zerolog.Nop()).Transport())
	require.Equal(t, TransportRedis, NewDispatcher(registry, client, nil, "internhub", zerolog.Nop()).Transport())

	both := NewDispatcher(registry, client, &nats.Conn{}, "internhub:rt", zerolog.Nop())
	require.Equal(t, TransportNATS, both.Transport())
	require.Nil(t, both.redis, "redis is not used alongside nats")
	require.Equal(t, "internhub.rt.messages", both.natsSubject)
}

func TestDispatcherRedisConsumerRecoversAfterOutage(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	channelBase := "internhub:outage"
	subject := channelBase + ":messages"
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	remoteRegistry := NewConnectionRegistry(zerolog.Nop())
	student := &stubChannel{}
	remoteRegistry.Register(2, student)
	remoteNode := NewDispatcher(remoteRegistry, newClient(), nil, channelBase, zerolog.Nop())
	senderNode := NewDispatcher(NewConnectionRegistry(zerolog.Nop()), newClient(), nil, channelBase, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remoteNode.Start(ctx)

	require.Eventually(t, func() bool {
		return mini.PubSubNumSub(subject)[subject] == 1
	}, 2*time.Second, 10*time.Millisecond)

	mini.Close()
	require.NoError(t, mini.Restart())

	require.Eventually(t, func() bool {
		return mini.PubSubNumSub(subject)[subject] == 1
	}, 10*time.Second, 20*time.Millisecond)

	conversation := models.Conversation{ID: 4, EmployerID: 1, StudentID: 2}
	senderNode.NotifyNewMessage(ctx, conversation, dto.MessageResponse{ID: 9, ConversationID: 4, SenderID: 1, Content: "after outage"})

	require.Eventually(t, func() bool {
		return len(student.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "after outage", student.received()[0].Message.Content)
}
