package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

const sqliteConversationColumns = `id, user_a, user_b, last_message_preview, last_message_at,
	unread_a, pinned_a, notify_a, deleted_a,
	unread_b, pinned_b, notify_b, deleted_b,
	created_at`

const sqliteMessageColumns = `id, conversation_id, sender_id, receiver_id, msg_type, content,
	attachment_url, in_reply_to, correlation_id, is_read, is_deleted, created_at`

type sqliteConversationRow struct {
	ID                 string `db:"id"`
	UserA              int64  `db:"user_a"`
	UserB              int64  `db:"user_b"`
	LastMessagePreview string `db:"last_message_preview"`
	LastMessageAt      int64  `db:"last_message_at"`
	UnreadA            int    `db:"unread_a"`
	PinnedA            bool   `db:"pinned_a"`
	NotifyA            bool   `db:"notify_a"`
	DeletedA           bool   `db:"deleted_a"`
	UnreadB            int    `db:"unread_b"`
	PinnedB            bool   `db:"pinned_b"`
	NotifyB            bool   `db:"notify_b"`
	DeletedB           bool   `db:"deleted_b"`
	CreatedAt          int64  `db:"created_at"`
}

func (row sqliteConversationRow) toDomain() chat.Conversation {
	return chat.Conversation{
		ID:                 row.ID,
		UserA:              row.UserA,
		UserB:              row.UserB,
		LastMessagePreview: row.LastMessagePreview,
		LastMessageAt:      fromUnixNano(row.LastMessageAt),
		A:                  chat.SideState{UnreadCount: row.UnreadA, Pinned: row.PinnedA, HasNotification: row.NotifyA, Deleted: row.DeletedA},
		B:                  chat.SideState{UnreadCount: row.UnreadB, Pinned: row.PinnedB, HasNotification: row.NotifyB, Deleted: row.DeletedB},
		CreatedAt:          fromUnixNano(row.CreatedAt),
	}
}

type sqliteMessageRow struct {
	ID             string         `db:"id"`
	ConversationID string         `db:"conversation_id"`
	SenderID       int64          `db:"sender_id"`
	ReceiverID     int64          `db:"receiver_id"`
	Type           int16          `db:"msg_type"`
	Content        string         `db:"content"`
	AttachmentURL  sql.NullString `db:"attachment_url"`
	InReplyTo      sql.NullString `db:"in_reply_to"`
	CorrelationID  sql.NullInt64  `db:"correlation_id"`
	IsRead         bool           `db:"is_read"`
	IsDeleted      bool           `db:"is_deleted"`
	CreatedAt      int64          `db:"created_at"`
}

func (row sqliteMessageRow) toDomain() chat.Message {
	m := chat.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		ReceiverID:     row.ReceiverID,
		Type:           chat.MessageType(row.Type),
		Content:        row.Content,
		IsRead:         row.IsRead,
		IsDeleted:      row.IsDeleted,
		CreatedAt:      fromUnixNano(row.CreatedAt),
	}
	if row.AttachmentURL.Valid {
		m.AttachmentURL = &row.AttachmentURL.String
	}
	if row.InReplyTo.Valid {
		m.InReplyTo = &row.InReplyTo.String
	}
	if row.CorrelationID.Valid {
		m.CorrelationID = &row.CorrelationID.Int64
	}
	return m
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// SQLiteChatRepository is the embedded single-node store. It is also what
// the use-case tests run against.
type SQLiteChatRepository struct {
	db *sqlx.DB
}

func NewSQLiteChatRepository(db *sqlx.DB) *SQLiteChatRepository {
	return &SQLiteChatRepository{db: db}
}

var _ repository.ChatRepository = (*SQLiteChatRepository)(nil)

// withTx runs fn in a transaction. The store is opened with a single
// connection, so fn must only use tx.
func (r *SQLiteChatRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteChatRepository) GetOrCreateConversation(ctx context.Context, userX, userY int64) (chat.Conversation, error) {
	if r == nil || r.db == nil {
		return chat.Conversation{}, errors.New("SQLiteChatRepository: nil db")
	}
	if err := chat.ValidatePair(userX, userY); err != nil {
		return chat.Conversation{}, err
	}
	lo, hi := chat.CanonicalPair(userX, userY)

	var conv chat.Conversation
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		conv, err = sqliteGetOrCreate(ctx, tx, lo, hi, time.Now().UTC())
		return err
	})
	return conv, err
}

func sqliteGetOrCreate(ctx context.Context, tx *sqlx.Tx, lo, hi int64, now time.Time) (chat.Conversation, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chat_conversation (id, user_a, user_b, last_message_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`, newConversationID(), lo, hi, now.UnixNano(), now.UnixNano())
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	var row sqliteConversationRow
	err = tx.GetContext(ctx, &row, `SELECT `+sqliteConversationColumns+` FROM chat_conversation WHERE user_a = ? AND user_b = ?`, lo, hi)
	if err != nil {
		return chat.Conversation{}, sqliteNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *SQLiteChatRepository) GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	if r == nil || r.db == nil {
		return chat.Conversation{}, errors.New("SQLiteChatRepository: nil db")
	}
	var row sqliteConversationRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sqliteConversationColumns+` FROM chat_conversation WHERE id = ?`, conversationID)
	if err != nil {
		return chat.Conversation{}, sqliteNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *SQLiteChatRepository) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("SQLiteChatRepository: nil db")
	}
	var rows []sqliteConversationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+sqliteConversationColumns+`
		FROM chat_conversation
		WHERE (user_a = ? AND deleted_a = 0) OR (user_b = ? AND deleted_b = 0)
		ORDER BY last_message_at DESC, id
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	convs := make([]chat.Conversation, 0, len(rows))
	for _, row := range rows {
		convs = append(convs, row.toDomain())
	}
	return convs, nil
}

func (r *SQLiteChatRepository) SaveMessage(ctx context.Context, p repository.SaveMessageParams) (repository.SaveMessageResult, error) {
	if r == nil || r.db == nil {
		return repository.SaveMessageResult{}, errors.New("SQLiteChatRepository: nil db")
	}
	m := p.Message
	lo, hi := chat.CanonicalPair(m.SenderID, m.ReceiverID)

	id, err := newMessageID()
	if err != nil {
		return repository.SaveMessageResult{}, err
	}
	m.ID = id
	at := m.CreatedAt.UnixNano()

	var res repository.SaveMessageResult
	err = r.withTx(ctx, func(tx *sqlx.Tx) error {
		conv, err := sqliteGetOrCreate(ctx, tx, lo, hi, m.CreatedAt)
		if err != nil {
			return err
		}
		m.ConversationID = conv.ID

		if m.InReplyTo != nil {
			var n int
			if err := tx.GetContext(ctx, &n,
				`SELECT COUNT(*) FROM chat_message WHERE id = ? AND conversation_id = ?`,
				*m.InReplyTo, conv.ID,
			); err != nil {
				return err
			}
			if n == 0 {
				return chat.ErrReplyTargetNotFound
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_message (
				id, conversation_id, sender_id, receiver_id, msg_type, content,
				attachment_url, in_reply_to, correlation_id, is_read, is_deleted, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
		`, m.ID, m.ConversationID, m.SenderID, m.ReceiverID, int16(m.Type), m.Content,
			m.AttachmentURL, m.InReplyTo, m.CorrelationID, at); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		side, err := conv.SideOf(m.ReceiverID)
		if err != nil {
			return err
		}
		recv := columnsFor(side)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE chat_conversation SET
				last_message_preview = CASE WHEN ? >= last_message_at THEN ? ELSE last_message_preview END,
				last_message_at = MAX(last_message_at, ?),
				%[1]s = %[1]s + 1,
				%[2]s = 1,
				deleted_a = 0,
				deleted_b = 0
			WHERE id = ?
		`, recv.unread, recv.notify), at, p.Preview, at, conv.ID); err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}

		var row sqliteConversationRow
		if err := tx.GetContext(ctx, &row, `SELECT `+sqliteConversationColumns+` FROM chat_conversation WHERE id = ?`, conv.ID); err != nil {
			return sqliteNotFound(err)
		}
		res = repository.SaveMessageResult{Message: m, Conversation: row.toDomain()}
		return nil
	})
	if err != nil {
		return repository.SaveMessageResult{}, err
	}
	return res, nil
}

func (r *SQLiteChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("SQLiteChatRepository: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []sqliteMessageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+sqliteMessageColumns+`
		FROM chat_message
		WHERE conversation_id = ? AND is_deleted = 0
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	return toMessages(rows), nil
}

func (r *SQLiteChatRepository) ListUnread(ctx context.Context, receiverID int64, after *repository.UnreadCursor, limit int) ([]chat.Message, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("SQLiteChatRepository: nil db")
	}
	if limit <= 0 {
		limit = 200
	}
	var (
		rows []sqliteMessageRow
		err  error
	)
	if after == nil {
		err = r.db.SelectContext(ctx, &rows, `
			SELECT `+sqliteMessageColumns+`
			FROM chat_message
			WHERE receiver_id = ? AND is_read = 0 AND is_deleted = 0
			ORDER BY created_at, id
			LIMIT ?
		`, receiverID, limit)
	} else {
		at := after.CreatedAt.UnixNano()
		err = r.db.SelectContext(ctx, &rows, `
			SELECT `+sqliteMessageColumns+`
			FROM chat_message
			WHERE receiver_id = ? AND is_read = 0 AND is_deleted = 0
			  AND (created_at > ? OR (created_at = ? AND id > ?))
			ORDER BY created_at, id
			LIMIT ?
		`, receiverID, at, at, after.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	return toMessages(rows), nil
}

func (r *SQLiteChatRepository) MarkRead(ctx context.Context, conversationID string, userID int64) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("SQLiteChatRepository: nil db")
	}
	var flipped int64
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var row sqliteConversationRow
		if err := tx.GetContext(ctx, &row, `SELECT `+sqliteConversationColumns+` FROM chat_conversation WHERE id = ?`, conversationID); err != nil {
			return sqliteNotFound(err)
		}
		conv := row.toDomain()
		side, err := conv.SideOf(userID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE chat_message SET is_read = 1
			WHERE conversation_id = ? AND receiver_id = ? AND is_read = 0
		`, conversationID, userID)
		if err != nil {
			return err
		}
		if flipped, err = res.RowsAffected(); err != nil {
			return err
		}

		cols := columnsFor(side)
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE chat_conversation SET %s = 0, %s = 0 WHERE id = ?`, cols.unread, cols.notify),
			conversationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}

func (r *SQLiteChatRepository) SetPinned(ctx context.Context, conversationID string, userID int64, pinned bool) error {
	return r.setSideFlag(ctx, "pinned", conversationID, userID, pinned)
}

func (r *SQLiteChatRepository) SetDeleted(ctx context.Context, conversationID string, userID int64, deleted bool) error {
	return r.setSideFlag(ctx, "deleted", conversationID, userID, deleted)
}

func (r *SQLiteChatRepository) setSideFlag(ctx context.Context, base string, conversationID string, userID int64, value bool) error {
	if r == nil || r.db == nil {
		return errors.New("SQLiteChatRepository: nil db")
	}
	colA, colB, err := flagColumn(base)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE chat_conversation SET
			%[1]s = CASE WHEN user_a = ? THEN ? ELSE %[1]s END,
			%[2]s = CASE WHEN user_b = ? THEN ? ELSE %[2]s END
		WHERE id = ? AND (user_a = ? OR user_b = ?)
	`, colA, colB), userID, value, userID, value, conversationID, userID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return chat.ErrConversationNotFound
	}
	return nil
}

func toMessages(rows []sqliteMessageRow) []chat.Message {
	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toDomain())
	}
	return msgs
}

func sqliteNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return chat.ErrConversationNotFound
	}
	return err
}
