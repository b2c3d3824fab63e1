package realtime

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	mu        sync.Mutex
	messages  [][]byte
	closeCode int
	closed    bool
	gate      chan struct{} // when set, WriteMessage blocks until it is closed
	writeErr  error
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.closeCode = int(binary.BigEndian.Uint16(data[:2]))
	}
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = string(m)
	}
	return out
}

func (f *fakeSocket) code() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

func TestConnection_WritesInOrder(t *testing.T) {
	ws := &fakeSocket{}
	conn := NewConnection(10, ws)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, conn.Send([]byte(p)))
	}
	require.Eventually(t, func() bool { return len(ws.received()) == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, ws.received())
}

func TestConnection_SendAfterClose(t *testing.T) {
	ws := &fakeSocket{}
	conn := NewConnection(10, ws)
	conn.Start()
	conn.Close(websocket.CloseNormalClosure, "bye")
	conn.Close(websocket.CloseNormalClosure, "again")

	require.ErrorIs(t, conn.Send([]byte("x")), ErrConnectionClosed)
	require.Equal(t, websocket.CloseNormalClosure, ws.code())
	<-conn.Done()
}

func TestConnection_SlowConsumerIsDisconnected(t *testing.T) {
	ws := &fakeSocket{gate: make(chan struct{})}
	defer close(ws.gate)
	conn := NewConnection(10, ws)
	conn.Start()

	var err error
	for i := 0; i < sendBuffer+2 && err == nil; i++ {
		err = conn.Send([]byte("x"))
	}
	require.ErrorIs(t, err, ErrBufferFull)
	select {
	case <-conn.Done():
	default:
		t.Fatal("connection should be closed")
	}
	require.Equal(t, websocket.CloseGoingAway, ws.code())
}

func TestRegistry_PushToAllSessionsOfUser(t *testing.T) {
	reg := NewRegistry(Limits{})
	defer reg.Close()

	ws1, ws2, other := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	c1, c2, c3 := NewConnection(20, ws1), NewConnection(20, ws2), NewConnection(30, other)
	require.NoError(t, reg.Attach(c1))
	require.NoError(t, reg.Attach(c2))
	require.NoError(t, reg.Attach(c3))
	require.Equal(t, 3, reg.Count())
	require.True(t, reg.Connected(20))
	require.False(t, reg.Connected(99))

	require.Equal(t, 2, reg.PushToUser(20, []byte("hi")))
	require.Zero(t, reg.PushToUser(99, []byte("hi")))
	require.Eventually(t, func() bool {
		return len(ws1.received()) == 1 && len(ws2.received()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, other.received())

	reg.Detach(c1)
	reg.Detach(c1)
	require.Equal(t, 2, reg.Count())
	require.Equal(t, 1, reg.PushToUser(20, []byte("again")))
}

func TestRegistry_EvictsOldestSessionOfUser(t *testing.T) {
	reg := NewRegistry(Limits{MaxSessionsPerUser: 2})
	defer reg.Close()

	now := time.Now()
	sockets := []*fakeSocket{{}, {}, {}}
	conns := make([]*Connection, len(sockets))
	for i, ws := range sockets {
		conns[i] = NewConnection(20, ws)
		conns[i].ConnectedAt = now.Add(time.Duration(i) * time.Second)
	}
	require.NoError(t, reg.Attach(conns[1]))
	require.NoError(t, reg.Attach(conns[0]))
	require.NoError(t, reg.Attach(conns[2]))

	require.Equal(t, 2, reg.Count())
	require.Equal(t, CloseSessionReplaced, sockets[0].code())
	require.Zero(t, sockets[1].code())
	require.Equal(t, 2, reg.PushToUser(20, []byte("x")))
}

func TestRegistry_RejectsWhenFull(t *testing.T) {
	reg := NewRegistry(Limits{MaxSessions: 1, MaxSessionsPerUser: 1})
	defer reg.Close()

	require.NoError(t, reg.Attach(NewConnection(10, &fakeSocket{})))
	require.ErrorIs(t, reg.Attach(NewConnection(20, &fakeSocket{})), ErrRegistryFull)

	// replacing a session of the same user frees its own slot
	ws := &fakeSocket{}
	require.NoError(t, reg.Attach(NewConnection(10, ws)))
	require.Equal(t, 1, reg.Count())
}

func TestRegistry_CloseDisconnectsEveryone(t *testing.T) {
	reg := NewRegistry(Limits{})
	ws := &fakeSocket{}
	conn := NewConnection(10, ws)
	require.NoError(t, reg.Attach(conn))

	reg.Close()
	require.Zero(t, reg.Count())
	require.False(t, reg.Connected(10))
	<-conn.Done()
	require.Equal(t, 1001, ws.code())
}

func TestConnection_SendWaitBlocksInsteadOfDropping(t *testing.T) {
	ws := &fakeSocket{gate: make(chan struct{})}
	conn := NewConnection(10, ws)
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < sendBuffer+2 && err == nil; i++ {
		err = conn.SendWait(ctx, []byte("x"))
	}
	require.ErrorIs(t, err, context.DeadlineExceeded)
	select {
	case <-conn.Done():
		t.Fatal("connection must stay open")
	default:
	}

	close(ws.gate)
	require.NoError(t, conn.SendWait(context.Background(), []byte("y")))
}

func TestConnection_LivePushDuringReplayKeepsSession(t *testing.T) {
	reg := NewRegistry(Limits{})
	defer reg.Close()

	ws := &fakeSocket{gate: make(chan struct{})}
	conn := NewConnection(20, ws)
	require.NoError(t, reg.Attach(conn))

	const backlog = 300
	endReplay := conn.BeginReplay()
	replayed := make(chan error, 1)
	go func() {
		defer endReplay()
		for i := 0; i < backlog; i++ {
			if err := conn.SendWait(context.Background(), []byte("r")); err != nil {
				replayed <- err
				return
			}
		}
		replayed <- nil
	}()
	require.Eventually(t, func() bool { return len(conn.send) == sendBuffer }, time.Second, time.Millisecond)

	require.Zero(t, reg.PushToUser(20, []byte("live")))
	require.ErrorIs(t, conn.Send([]byte("echo")), ErrFrameDropped)
	select {
	case <-conn.Done():
		t.Fatal("replaying connection must not be treated as a slow consumer")
	default:
	}

	close(ws.gate)
	require.NoError(t, <-replayed)
	require.Eventually(t, func() bool { return len(ws.received()) == backlog }, 2*time.Second, 5*time.Millisecond)
	for _, m := range ws.received() {
		require.Equal(t, "r", m)
	}
	require.True(t, reg.Connected(20))

	// once the replay ended live pushes flow again
	require.Equal(t, 1, reg.PushToUser(20, []byte("live")))
	require.Eventually(t, func() bool { return len(ws.received()) == backlog+1 }, time.Second, 5*time.Millisecond)
}

func TestConnection_WriteFailureClosesWithInternalError(t *testing.T) {
	ws := &fakeSocket{writeErr: errors.New("broken pipe")}
	conn := NewConnection(10, ws)
	conn.Start()

	require.NoError(t, conn.Send([]byte("x")))
	require.Eventually(t, func() bool { return ws.code() == websocket.CloseInternalServerErr }, time.Second, 5*time.Millisecond)
	<-conn.Done()
}
