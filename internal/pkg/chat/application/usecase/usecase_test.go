package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-hirechat/internal/infrastructure/database"
	"go-hirechat/internal/pkg/chat/application/delivery"
	chat "go-hirechat/internal/pkg/chat/application/domain"
	"go-hirechat/internal/pkg/chat/persistence/repository/adapter"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

type fakeUsers struct {
	profiles map[int64]chat.UserProfile
	err      error
}

func (f *fakeUsers) Exists(_ context.Context, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.profiles[id]
	return ok, nil
}

func (f *fakeUsers) Profiles(_ context.Context, ids []int64) (map[int64]chat.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]chat.UserProfile{}
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeApplications map[int64]bool

func (f fakeApplications) Exists(_ context.Context, id int64) (bool, error) {
	return f[id], nil
}

type recordingDeliverer struct {
	mu  sync.Mutex
	got []chat.Message
	err error
}

func (d *recordingDeliverer) Deliver(_ context.Context, m chat.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, m)
	return d.err
}

type failingRepo struct {
	repository.ChatRepository
}

func (failingRepo) SaveMessage(context.Context, repository.SaveMessageParams) (repository.SaveMessageResult, error) {
	return repository.SaveMessageResult{}, errors.New("connection reset")
}

type fixture struct {
	repo      *adapter.SQLiteChatRepository
	users     *fakeUsers
	apps      fakeApplications
	deliverer *recordingDeliverer
	send      *SendMessageUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		repo: adapter.NewSQLiteChatRepository(db),
		users: &fakeUsers{profiles: map[int64]chat.UserProfile{
			10: {ID: 10, Nickname: "seeker"},
			20: {ID: 20, Nickname: "hr", AvatarURL: "https://cdn/hr.png"},
			30: {ID: 30, Nickname: "other hr"},
		}},
		apps:      fakeApplications{7: true},
		deliverer: &recordingDeliverer{},
	}
	f.send = NewSendMessageUseCase(f.repo, f.users, f.apps, f.deliverer, nil)
	return f
}

func (f *fixture) text(t *testing.T, from, to int64, content string) *chat.Message {
	t.Helper()
	m, err := f.send.Execute(context.Background(), SendMessageInput{SenderID: from, ReceiverID: to, Type: chat.MessageTypeText, Content: content})
	require.NoError(t, err)
	return m
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func TestSendMessage_TextUpdatesAggregateAndDelivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.text(t, 10, 20, "Hi, I am interested in the backend role.")
	require.NotEmpty(t, m.ID)
	require.False(t, m.IsRead)

	conv, err := f.repo.GetConversation(ctx, m.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "Hi, I am interested in the backend role.", conv.LastMessagePreview)
	require.Equal(t, 1, conv.B.UnreadCount)
	require.True(t, conv.B.HasNotification)
	require.Zero(t, conv.A.UnreadCount)

	require.Len(t, f.deliverer.got, 1)
	require.Equal(t, m.ID, f.deliverer.got[0].ID)
}

func TestSendMessage_ImageReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.text(t, 10, 20, "hello")

	m, err := f.send.Execute(ctx, SendMessageInput{
		SenderID:      20,
		ReceiverID:    10,
		Type:          chat.MessageTypeImage,
		AttachmentURL: strPtr("https://cdn/x.png"),
	})
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, m.ConversationID)

	conv, err := f.repo.GetConversation(ctx, m.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "[image]", conv.LastMessagePreview)
	require.Equal(t, 1, conv.A.UnreadCount)
	require.Equal(t, 1, conv.B.UnreadCount)
}

func TestSendMessage_LongTextPreviewIsTruncated(t *testing.T) {
	f := newFixture(t)
	long := "0123456789012345678901234567890123456789012345678901234567890"
	m := f.text(t, 10, 20, long)

	conv, err := f.repo.GetConversation(context.Background(), m.ConversationID)
	require.NoError(t, err)
	require.Equal(t, long[:50]+"...", conv.LastMessagePreview)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SendMessageInput
		want error
	}{
		{"self", SendMessageInput{SenderID: 10, ReceiverID: 10, Type: chat.MessageTypeText, Content: "x"}, chat.ErrSelfConversation},
		{"zero receiver", SendMessageInput{SenderID: 10, Type: chat.MessageTypeText, Content: "x"}, chat.ErrInvalidUser},
		{"bad type", SendMessageInput{SenderID: 10, ReceiverID: 20, Type: 9, Content: "x"}, chat.ErrInvalidMessageType},
		{"blank text", SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeText, Content: "  "}, chat.ErrEmptyMessage},
		{"media without url", SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeFile}, chat.ErrMissingAttachment},
		{"unknown receiver", SendMessageInput{SenderID: 10, ReceiverID: 99, Type: chat.MessageTypeText, Content: "x"}, chat.ErrUnknownReceiver},
		{"unknown application", SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeText, Content: "x", CorrelationID: int64Ptr(8)}, chat.ErrCorrelationNotFound},
		{"reply elsewhere", SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeText, Content: "x", InReplyTo: strPtr("0190a8c4-0000-7000-8000-000000000000")}, chat.ErrReplyTargetNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.send.Execute(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// nothing was written or delivered
	convs, err := f.repo.ListConversations(ctx, 20)
	require.NoError(t, err)
	require.Empty(t, convs)
	require.Empty(t, f.deliverer.got)
}

func TestSendMessage_CorrelationCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.send.Execute(ctx, SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeText, Content: "x", CorrelationID: int64Ptr(7)})
	require.NoError(t, err)
	require.Equal(t, int64(7), *m.CorrelationID)

	m, err = f.send.Execute(ctx, SendMessageInput{SenderID: 20, ReceiverID: 10, Type: chat.MessageTypeText, Content: "x", CorrelationID: int64Ptr(8), SkipCorrelationCheck: true})
	require.NoError(t, err)
	require.Equal(t, int64(8), *m.CorrelationID)
}

func TestSendMessage_DeliveryFailureDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.deliverer.err = errors.New("broker down")

	m := f.text(t, 10, 20, "still saved")
	conv, err := f.repo.GetConversation(context.Background(), m.ConversationID)
	require.NoError(t, err)
	require.Equal(t, 1, conv.B.UnreadCount)
}

func TestSendMessage_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	uc := NewSendMessageUseCase(failingRepo{f.repo}, f.users, f.apps, f.deliverer, nil)

	_, err := uc.Execute(context.Background(), SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeText, Content: "x"})
	require.ErrorIs(t, err, ErrPersistence)
	require.Empty(t, f.deliverer.got)

	f.users.err = errors.New("directory down")
	_, err = f.send.Execute(context.Background(), SendMessageInput{SenderID: 10, ReceiverID: 20, Type: chat.MessageTypeText, Content: "x"})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.text(t, 10, 20, "a")
	f.text(t, 10, 20, "b")

	uc := NewMarkReadUseCase(f.repo)
	n, err := uc.Execute(ctx, MarkReadInput{ConversationID: m.ConversationID, UserID: 20})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = uc.Execute(ctx, MarkReadInput{ConversationID: m.ConversationID, UserID: 20})
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = uc.Execute(ctx, MarkReadInput{ConversationID: m.ConversationID, UserID: 30})
	require.ErrorIs(t, err, chat.ErrConversationNotFound)
	_, err = uc.Execute(ctx, MarkReadInput{UserID: 20})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPinAndDeleteConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.text(t, 10, 20, "a")

	require.NoError(t, NewPinConversationUseCase(f.repo).Execute(ctx, PinConversationInput{ConversationID: m.ConversationID, UserID: 20, Pinned: true}))
	err := NewPinConversationUseCase(f.repo).Execute(ctx, PinConversationInput{ConversationID: m.ConversationID, UserID: 30, Pinned: true})
	require.ErrorIs(t, err, chat.ErrConversationNotFound)

	del := NewDeleteConversationUseCase(f.repo)
	require.NoError(t, del.Execute(ctx, DeleteConversationInput{ConversationID: m.ConversationID, UserID: 20}))
	require.ErrorIs(t, del.Execute(ctx, DeleteConversationInput{ConversationID: "nope", UserID: 20}), chat.ErrConversationNotFound)

	list := NewListConversationUseCase(f.repo, f.users, nil)
	views, err := list.Execute(ctx, ListConversationInput{UserID: 20})
	require.NoError(t, err)
	require.Empty(t, views)

	views, err = list.Execute(ctx, ListConversationInput{UserID: 10})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.False(t, views[0].Pinned)

	// the next message un-hides it, pin survives
	f.text(t, 10, 20, "b")
	views, err = list.Execute(ctx, ListConversationInput{UserID: 20})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, views[0].Pinned)
	require.Equal(t, 2, views[0].UnreadCount)
}

func TestListConversation_AttachesPeerProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.text(t, 10, 20, "to hr")
	time.Sleep(time.Millisecond)
	f.text(t, 30, 10, "from other hr")

	list := NewListConversationUseCase(f.repo, f.users, nil)
	views, err := list.Execute(ctx, ListConversationInput{UserID: 10})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, int64(30), views[0].PeerID)
	require.Equal(t, "other hr", views[0].PeerNickname)
	require.Equal(t, 1, views[0].UnreadCount)
	require.Equal(t, int64(20), views[1].PeerID)
	require.Equal(t, "https://cdn/hr.png", views[1].PeerAvatarURL)
	require.Zero(t, views[1].UnreadCount)

	// profile outage degrades to bare views
	f.users.err = errors.New("directory down")
	views, err = list.Execute(ctx, ListConversationInput{UserID: 10})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Empty(t, views[0].PeerNickname)
}

func TestGetMessage_PagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var convID string
	for _, c := range []string{"a", "b", "c"} {
		convID = f.text(t, 10, 20, c).ConversationID
		time.Sleep(time.Millisecond)
	}

	uc := NewGetMessageUseCase(f.repo)
	msgs, err := uc.Execute(ctx, GetMessageInput{ConversationID: convID, UserID: 20, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "c", msgs[0].Content)

	msgs, err = uc.Execute(ctx, GetMessageInput{ConversationID: convID, UserID: 10, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "a", msgs[0].Content)

	_, err = uc.Execute(ctx, GetMessageInput{ConversationID: convID, UserID: 30})
	require.ErrorIs(t, err, chat.ErrConversationNotFound)
}

func TestNormalizePage(t *testing.T) {
	p, s := NormalizePage(0, 0)
	require.Equal(t, 1, p)
	require.Equal(t, DefaultPageSize, s)
	_, s = NormalizePage(3, 1000)
	require.Equal(t, MaxPageSize, s)
}

type sliceSink struct {
	frames [][]byte
	limit  int
}

func (s *sliceSink) Send(p []byte) error {
	if s.limit > 0 && len(s.frames) >= s.limit {
		return errors.New("closed")
	}
	s.frames = append(s.frames, p)
	return nil
}

func TestReplayUnread_ReplaysInOrderWithoutMarkingRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []string
	for _, c := range []string{"one", "two", "three"} {
		ids = append(ids, f.text(t, 10, 20, c).ID)
	}
	f.text(t, 20, 10, "not for 20")

	// batch smaller than the backlog exercises the cursor
	uc := NewReplayUnreadUseCase(f.repo, 2)
	sink := &sliceSink{}
	n, err := uc.Execute(ctx, ReplayUnreadInput{UserID: 20, Sink: sink})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var got []string
	for _, frame := range sink.frames {
		var p delivery.MessagePayload
		require.NoError(t, json.Unmarshal(frame, &p))
		require.Equal(t, int64(20), p.ReceiverID)
		got = append(got, p.ID)
	}
	require.Equal(t, ids, got)

	// replay again: still unread
	n, err = uc.Execute(ctx, ReplayUnreadInput{UserID: 20, Sink: &sliceSink{}})
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestReplayUnread_StopsWhenSinkCloses(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.text(t, 10, 20, "m")
	}
	n, err := NewReplayUnreadUseCase(f.repo, 0).Execute(context.Background(), ReplayUnreadInput{UserID: 20, Sink: &sliceSink{limit: 2}})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
