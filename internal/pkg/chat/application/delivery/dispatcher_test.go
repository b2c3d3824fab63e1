package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pubsub "go-hirechat/internal/infrastructure/pubsub/port"
	chat "go-hirechat/internal/pkg/chat/application/domain"
)

type memBroker struct {
	mu        sync.Mutex
	published [][]byte
	subs      []*memSub
}

type memSub struct{ ch chan []byte }

func (s *memSub) Messages() <-chan []byte { return s.ch }
func (s *memSub) Close() error            { return nil }

func (b *memBroker) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
	for _, s := range b.subs {
		s.ch <- payload
	}
	return nil
}

func (b *memBroker) Subscribe(context.Context, string) (pubsub.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &memSub{ch: make(chan []byte, 64)}
	b.subs = append(b.subs, s)
	return s, nil
}

func (b *memBroker) Close() error { return nil }

func (b *memBroker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *memBroker) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

type recordingPusher struct {
	mu        sync.Mutex
	connected map[int64]bool
	pushes    map[int64][][]byte
}

func newRecordingPusher(connected ...int64) *recordingPusher {
	p := &recordingPusher{connected: map[int64]bool{}, pushes: map[int64][][]byte{}}
	for _, id := range connected {
		p.connected[id] = true
	}
	return p
}

func (p *recordingPusher) PushToUser(userID int64, payload []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected[userID] {
		return 0
	}
	p.pushes[userID] = append(p.pushes[userID], payload)
	return 1
}

func (p *recordingPusher) Connected(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected[userID]
}

func (p *recordingPusher) count(userID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes[userID])
}

func testMessage() chat.Message {
	return chat.Message{
		ID:             "0190a8c4-0000-7000-8000-000000000001",
		ConversationID: "c1",
		SenderID:       10,
		ReceiverID:     20,
		Type:           chat.MessageTypeText,
		Content:        "hello",
		CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_DeliverPushesLocallyAndPublishes(t *testing.T) {
	broker := &memBroker{}
	pusher := newRecordingPusher(20)
	d := NewDispatcher(pusher, broker, Config{InstanceID: "api-1"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.NoError(t, d.Deliver(ctx, testMessage()))
	require.Equal(t, 1, pusher.count(20))

	var got MessagePayload
	require.NoError(t, json.Unmarshal(pusher.pushes[20][0], &got))
	require.Equal(t, "hello", got.Content)
	require.Equal(t, int16(1), got.Type)

	require.Eventually(t, func() bool { return broker.publishedCount() == 1 }, time.Second, 5*time.Millisecond)
	var env Envelope
	require.NoError(t, json.Unmarshal(broker.published[0], &env))
	require.Equal(t, "api-1", env.Origin)
	require.Equal(t, int64(20), env.ReceiverID)
	require.JSONEq(t, string(pusher.pushes[20][0]), string(env.Message))
}

func TestDispatcher_CrossInstanceFanOut(t *testing.T) {
	broker := &memBroker{}
	pusherA := newRecordingPusher(20)
	pusherB := newRecordingPusher(20)
	a := NewDispatcher(pusherA, broker, Config{InstanceID: "a"}, nil)
	b := NewDispatcher(pusherB, broker, Config{InstanceID: "b"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()
	go func() { _ = b.Run(ctx) }()
	require.Eventually(t, func() bool { return broker.subscribers() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Deliver(ctx, testMessage()))

	require.Eventually(t, func() bool { return pusherB.count(20) == 1 }, time.Second, 5*time.Millisecond)
	// a skipped its own envelope: only the direct local push
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, pusherA.count(20))
}

func TestDispatcher_DropsEnvelopesForAbsentReceivers(t *testing.T) {
	pusher := newRecordingPusher()
	d := NewDispatcher(pusher, &memBroker{}, Config{InstanceID: "b"}, nil)

	raw, err := json.Marshal(Envelope{Origin: "a", ReceiverID: 20, Message: json.RawMessage(`{}`)})
	require.NoError(t, err)
	d.handleEnvelope(raw)
	d.handleEnvelope([]byte("not json"))
	require.Zero(t, pusher.count(20))
}

func TestDispatcher_OutboxFull(t *testing.T) {
	d := NewDispatcher(newRecordingPusher(), &memBroker{}, Config{InstanceID: "a", OutboxSize: 1}, nil)

	require.NoError(t, d.Deliver(context.Background(), testMessage()))
	require.ErrorIs(t, d.Deliver(context.Background(), testMessage()), ErrOutboxFull)
}

func TestDispatcher_RunStopsWithContext(t *testing.T) {
	d := NewDispatcher(newRecordingPusher(), &memBroker{}, Config{InstanceID: "a"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	d.Wait()
}
