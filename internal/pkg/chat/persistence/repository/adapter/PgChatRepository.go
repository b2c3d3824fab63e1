package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

const pgConversationColumns = `id::text, user_a, user_b, last_message_preview, last_message_at,
	unread_a, pinned_a, notify_a, deleted_a,
	unread_b, pinned_b, notify_b, deleted_b,
	created_at`

const pgMessageColumns = `id::text, conversation_id::text, sender_id, receiver_id, msg_type, content,
	attachment_url, in_reply_to::text, correlation_id, is_read, is_deleted, created_at`

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

func (r *PgChatRepository) GetOrCreateConversation(ctx context.Context, userX, userY int64) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errors.New("PgChatRepository: nil pool")
	}
	if err := chat.ValidatePair(userX, userY); err != nil {
		return chat.Conversation{}, err
	}
	lo, hi := chat.CanonicalPair(userX, userY)

	var conv chat.Conversation
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		conv, err = pgGetOrCreate(ctx, tx, lo, hi, time.Now().UTC())
		return err
	})
	return conv, err
}

// pgGetOrCreate relies on the (user_a, user_b) unique constraint: a racing
// insert blocks until the winner commits and then becomes a no-op.
func pgGetOrCreate(ctx context.Context, q pgQuerier, lo, hi int64, now time.Time) (chat.Conversation, error) {
	_, err := q.Exec(ctx, `
		INSERT INTO chat_conversation (id, user_a, user_b, last_message_at, created_at)
		VALUES ($1::uuid, $2, $3, $4, $4)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`, newConversationID(), lo, hi, now)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	row := q.QueryRow(ctx, `SELECT `+pgConversationColumns+` FROM chat_conversation WHERE user_a = $1 AND user_b = $2`, lo, hi)
	return pgScanConversation(row)
}

func (r *PgChatRepository) GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return chat.Conversation{}, errors.New("PgChatRepository: nil pool")
	}
	if !isUUID(conversationID) {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+pgConversationColumns+` FROM chat_conversation WHERE id = $1::uuid`, conversationID)
	return pgScanConversation(row)
}

func (r *PgChatRepository) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+pgConversationColumns+`
		FROM chat_conversation
		WHERE (user_a = $1 AND NOT deleted_a) OR (user_b = $1 AND NOT deleted_b)
		ORDER BY last_message_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []chat.Conversation
	for rows.Next() {
		c, err := pgScanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return convs, nil
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, p repository.SaveMessageParams) (repository.SaveMessageResult, error) {
	if r == nil || r.pool == nil {
		return repository.SaveMessageResult{}, errors.New("PgChatRepository: nil pool")
	}
	m := p.Message
	lo, hi := chat.CanonicalPair(m.SenderID, m.ReceiverID)

	id, err := newMessageID()
	if err != nil {
		return repository.SaveMessageResult{}, err
	}
	m.ID = id

	var res repository.SaveMessageResult
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		conv, err := pgGetOrCreate(ctx, tx, lo, hi, m.CreatedAt)
		if err != nil {
			return err
		}
		m.ConversationID = conv.ID

		if m.InReplyTo != nil {
			if !isUUID(*m.InReplyTo) {
				return chat.ErrReplyTargetNotFound
			}
			var ok bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM chat_message WHERE id = $1::uuid AND conversation_id = $2::uuid)`,
				*m.InReplyTo, conv.ID,
			).Scan(&ok); err != nil {
				return err
			}
			if !ok {
				return chat.ErrReplyTargetNotFound
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_message (
				id, conversation_id, sender_id, receiver_id, msg_type, content,
				attachment_url, in_reply_to, correlation_id, is_read, is_deleted, created_at
			) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8::uuid, $9, FALSE, FALSE, $10)
		`, m.ID, m.ConversationID, m.SenderID, m.ReceiverID, int16(m.Type), m.Content,
			m.AttachmentURL, m.InReplyTo, m.CorrelationID, m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		side, err := conv.SideOf(m.ReceiverID)
		if err != nil {
			return err
		}
		recv := columnsFor(side)
		// Counter bump is a single atomic UPDATE; the row lock it takes
		// serialises concurrent senders in the same conversation.
		row := tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE chat_conversation SET
				last_message_preview = CASE WHEN $2 >= last_message_at THEN $3 ELSE last_message_preview END,
				last_message_at = GREATEST(last_message_at, $2),
				%[1]s = %[1]s + 1,
				%[2]s = TRUE,
				deleted_a = FALSE,
				deleted_b = FALSE
			WHERE id = $1::uuid
			RETURNING `+pgConversationColumns, recv.unread, recv.notify),
			conv.ID, m.CreatedAt, p.Preview)
		updated, err := pgScanConversation(row)
		if err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}

		res = repository.SaveMessageResult{Message: m, Conversation: updated}
		return nil
	})
	if err != nil {
		return repository.SaveMessageResult{}, err
	}
	return res, nil
}

func (r *PgChatRepository) GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM chat_message
		WHERE conversation_id = $1::uuid AND NOT is_deleted
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgCollectMessages(rows)
}

func (r *PgChatRepository) ListUnread(ctx context.Context, receiverID int64, after *repository.UnreadCursor, limit int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if limit <= 0 {
		limit = 200
	}
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+pgMessageColumns+`
			FROM chat_message
			WHERE receiver_id = $1 AND NOT is_read AND NOT is_deleted
			ORDER BY created_at, id
			LIMIT $2
		`, receiverID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+pgMessageColumns+`
			FROM chat_message
			WHERE receiver_id = $1 AND NOT is_read AND NOT is_deleted
			  AND (created_at, id) > ($2, $3::uuid)
			ORDER BY created_at, id
			LIMIT $4
		`, receiverID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	return pgCollectMessages(rows)
}

func (r *PgChatRepository) MarkRead(ctx context.Context, conversationID string, userID int64) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgChatRepository: nil pool")
	}
	if !isUUID(conversationID) {
		return 0, chat.ErrConversationNotFound
	}

	var flipped int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Locking the aggregate first orders us against concurrent senders:
		// a message either lands before (and is flipped) or its counter bump
		// lands after the reset.
		conv, err := pgScanConversation(tx.QueryRow(ctx,
			`SELECT `+pgConversationColumns+` FROM chat_conversation WHERE id = $1::uuid FOR UPDATE`, conversationID))
		if err != nil {
			return err
		}
		side, err := conv.SideOf(userID)
		if err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, `
			UPDATE chat_message SET is_read = TRUE
			WHERE conversation_id = $1::uuid AND receiver_id = $2 AND NOT is_read
		`, conversationID, userID)
		if err != nil {
			return err
		}
		flipped = ct.RowsAffected()

		cols := columnsFor(side)
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE chat_conversation SET %s = 0, %s = FALSE WHERE id = $1::uuid`, cols.unread, cols.notify),
			conversationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}

func (r *PgChatRepository) SetPinned(ctx context.Context, conversationID string, userID int64, pinned bool) error {
	return r.setSideFlag(ctx, "pinned", conversationID, userID, pinned)
}

func (r *PgChatRepository) SetDeleted(ctx context.Context, conversationID string, userID int64, deleted bool) error {
	return r.setSideFlag(ctx, "deleted", conversationID, userID, deleted)
}

func (r *PgChatRepository) setSideFlag(ctx context.Context, base string, conversationID string, userID int64, value bool) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	if !isUUID(conversationID) {
		return chat.ErrConversationNotFound
	}
	colA, colB, err := flagColumn(base)
	if err != nil {
		return err
	}
	ct, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE chat_conversation SET
			%[1]s = CASE WHEN user_a = $2 THEN $3 ELSE %[1]s END,
			%[2]s = CASE WHEN user_b = $2 THEN $3 ELSE %[2]s END
		WHERE id = $1::uuid AND (user_a = $2 OR user_b = $2)
	`, colA, colB), conversationID, userID, value)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrConversationNotFound
	}
	return nil
}

func pgScanConversation(row pgx.Row) (chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(
		&c.ID, &c.UserA, &c.UserB, &c.LastMessagePreview, &c.LastMessageAt,
		&c.A.UnreadCount, &c.A.Pinned, &c.A.HasNotification, &c.A.Deleted,
		&c.B.UnreadCount, &c.B.Pinned, &c.B.HasNotification, &c.B.Deleted,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, chat.ErrConversationNotFound
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	c.LastMessageAt = c.LastMessageAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func pgCollectMessages(rows pgx.Rows) ([]chat.Message, error) {
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			msg     chat.Message
			msgType int16
		)
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.ReceiverID, &msgType, &msg.Content,
			&msg.AttachmentURL, &msg.InReplyTo, &msg.CorrelationID, &msg.IsRead, &msg.IsDeleted, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.Type = chat.MessageType(msgType)
		msg.CreatedAt = msg.CreatedAt.UTC()
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}
