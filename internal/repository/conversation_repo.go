package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"servechat/internal/db"
	"servechat/internal/domain"
)

const (
	DefaultListLimit = 100
	MinListLimit     = 10
	MaxListLimit     = 500
)

// ErrConversationNotFound se devuelve cuando el id no existe.
var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository interface {
	Ensure(ctx context.Context, conv domain.Conversation) error
	UpdateModel(ctx context.Context, id, model string) error
	UpdateTitle(ctx context.Context, id, title string) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	List(ctx context.Context, filter domain.ConversationFilter) ([]domain.ConversationSummary, error)
	Delete(ctx context.Context, id string) error
}

type PgConversationRepository struct {
	exec db.Executor
	ns   db.Namespace
}

func NewPgConversationRepository(exec db.Executor, ns db.Namespace) *PgConversationRepository {
	return &PgConversationRepository{exec: exec, ns: ns}
}

// Ensure inserta la conversacion o, si ya existe, solo actualiza updated_at.
func (r *PgConversationRepository) Ensure(ctx context.Context, conv domain.Conversation) error {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, user_id, tenant_id, title, model, created_at, updated_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (conversation_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`, r.ns.Table(db.TableConversations))

	tenant := conv.TenantID
	if tenant == "" {
		tenant = domain.DefaultTenantID
	}
	title := conv.Title
	if title == "" {
		title = domain.DefaultConversationTitle
	}

	_, err = conn.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		tenant,
		title,
		conv.Model,
		conv.CreatedAt,
		conv.UpdatedAt,
		nonNilMeta(conv.Meta),
	)
	return err
}

func (r *PgConversationRepository) UpdateModel(ctx context.Context, id, model string) error {
	return r.updateColumn(ctx, "model", id, model)
}

func (r *PgConversationRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return r.updateColumn(ctx, "title", id, title)
}

func (r *PgConversationRepository) updateColumn(ctx context.Context, column, id, value string) error {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	query := fmt.Sprintf(`
		UPDATE %s SET %s = $1, updated_at = now()
		WHERE conversation_id = $2
	`, r.ns.Table(db.TableConversations), pgx.Identifier{column}.Sanitize())

	tag, err := conn.Exec(ctx, query, value, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return domain.Conversation{}, err
	}
	defer release()

	query := fmt.Sprintf(`
		SELECT conversation_id, user_id, tenant_id, title, model, created_at, updated_at, meta
		FROM %s
		WHERE conversation_id = $1
	`, r.ns.Table(db.TableConversations))

	var conv domain.Conversation
	err = conn.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.TenantID,
		&conv.Title,
		&conv.Model,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.Meta,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// List devuelve el historial con contadores de mensajes y uso, mas recientes primero.
func (r *PgConversationRepository) List(ctx context.Context, filter domain.ConversationFilter) ([]domain.ConversationSummary, error) {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query, args := r.listQuery(filter)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConversationSummary
	for rows.Next() {
		var s domain.ConversationSummary
		err = rows.Scan(
			&s.ConversationID,
			&s.Title,
			&s.Model,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.Messages,
			&s.TokensIn,
			&s.TokensOut,
			&s.Cost,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgConversationRepository) listQuery(filter domain.ConversationFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("c.user_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		cond := fmt.Sprintf("c.title ILIKE $%d OR c.model ILIKE $%d", n, n)
		if filter.IncludeContent {
			cond += fmt.Sprintf(
				" OR EXISTS (SELECT 1 FROM %s mm WHERE mm.conversation_id = c.conversation_id AND mm.content ILIKE $%d)",
				r.ns.Table(db.TableMessages), n,
			)
		}
		where = append(where, "("+cond+")")
	}
	whereClause := "TRUE"
	if len(where) > 0 {
		whereClause = strings.Join(where, " AND ")
	}
	args = append(args, ClampListLimit(filter.Limit))

	query := fmt.Sprintf(`
		SELECT c.conversation_id, c.title, c.model, c.created_at, c.updated_at,
		       COALESCE(m.msg_count, 0) AS messages,
		       COALESCE(u.tokens_in, 0) AS tokens_in,
		       COALESCE(u.tokens_out, 0) AS tokens_out,
		       COALESCE(u.cost, 0.0) AS cost
		FROM %s c
		LEFT JOIN (
			SELECT conversation_id, COUNT(*) AS msg_count
			FROM %s
			GROUP BY conversation_id
		) m ON m.conversation_id = c.conversation_id
		LEFT JOIN (
			SELECT conversation_id, SUM(tokens_in) AS tokens_in, SUM(tokens_out) AS tokens_out, SUM(cost) AS cost
			FROM %s
			GROUP BY conversation_id
		) u ON u.conversation_id = c.conversation_id
		WHERE %s
		ORDER BY c.updated_at DESC
		LIMIT $%d
	`,
		r.ns.Table(db.TableConversations),
		r.ns.Table(db.TableMessages),
		r.ns.Table(db.TableUsageEvents),
		whereClause,
		len(args),
	)
	return query, args
}

// Delete borra eventos, mensajes y la conversacion en una sola transaccion.
func (r *PgConversationRepository) Delete(ctx context.Context, id string) error {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, table := range []string{db.TableUsageEvents, db.TableMessages, db.TableConversations} {
		query := fmt.Sprintf("DELETE FROM %s WHERE conversation_id = $1", r.ns.Table(table))
		if _, err := tx.Exec(ctx, query, id); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// ClampListLimit aplica el rango aceptado por el historial.
func ClampListLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit < MinListLimit:
		return MinListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNilMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	return meta
}
