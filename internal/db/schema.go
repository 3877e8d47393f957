package db

import (
	"context"
	"fmt"
)

// EnsureSchema crea el schema y las tablas si no existen.
func EnsureSchema(ctx context.Context, exec Executor, ns Namespace) error {
	conn, release, err := exec.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	var stmts []string
	if schema := ns.SchemaName(); schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+schema)
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL DEFAULT 'default',
			title TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			meta JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, ns.Table(TableConversations)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'ok'
		)`, ns.Table(TableMessages)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			event_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			tokens_in INTEGER NOT NULL DEFAULT 0,
			tokens_out INTEGER NOT NULL DEFAULT 0,
			cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			meta JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, ns.Table(TableUsageEvents)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS messages_conversation_idx ON %s (conversation_id, created_at)", ns.Table(TableMessages)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS usage_events_conversation_idx ON %s (conversation_id)", ns.Table(TableUsageEvents)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS conversations_user_idx ON %s (user_id, updated_at DESC)", ns.Table(TableConversations)),
	)

	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
