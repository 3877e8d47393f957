package repository

import (
	"context"
	"fmt"

	"servechat/internal/db"
	"servechat/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type PgMessageRepository struct {
	exec db.Executor
	ns   db.Namespace
}

func NewPgMessageRepository(exec db.Executor, ns db.Namespace) *PgMessageRepository {
	return &PgMessageRepository{exec: exec, ns: ns}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	query := fmt.Sprintf(`
		INSERT INTO %s (message_id, conversation_id, role, content, tokens_in, tokens_out, created_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ns.Table(db.TableMessages))

	status := message.Status
	if status == "" {
		status = domain.MessageStatusOK
	}

	_, err = conn.Exec(ctx, query,
		message.ID,
		message.ConversationID,
		message.Role,
		message.Content,
		message.TokensIn,
		message.TokensOut,
		message.CreatedAt,
		status,
	)
	return err
}

func (r *PgMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error) {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := fmt.Sprintf(`
		SELECT message_id, conversation_id, role, content, tokens_in, tokens_out, created_at, status
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, r.ns.Table(db.TableMessages))

	rows, err := conn.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.TokensIn,
			&msg.TokensOut,
			&msg.CreatedAt,
			&msg.Status,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
