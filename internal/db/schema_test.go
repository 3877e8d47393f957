package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// recordingConn solo implementa Exec; el resto de DBTX no se usa en EnsureSchema.
type recordingConn struct {
	DBTX
	stmts   []string
	failOn  string
	execErr error
}

func (r *recordingConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return pgconn.CommandTag{}, r.execErr
	}
	return pgconn.CommandTag{}, nil
}

type fixedExecutor struct {
	conn     DBTX
	released bool
}

func (f *fixedExecutor) Conn(context.Context) (DBTX, func(), error) {
	return f.conn, func() { f.released = true }, nil
}

func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()
	conn := &recordingConn{}
	exec := &fixedExecutor{conn: conn}
	ns := Namespace{Catalog: "main", Schema: "chat"}

	if err := EnsureSchema(ctx, exec, ns); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}
	if !exec.released {
		t.Fatalf("expected connection released")
	}
	if !strings.HasPrefix(conn.stmts[0], "CREATE SCHEMA IF NOT EXISTS") {
		t.Fatalf("expected schema first, got %q", conn.stmts[0])
	}

	tables := 0
	for _, stmt := range conn.stmts {
		if strings.HasPrefix(stmt, "CREATE TABLE") {
			tables++
		}
		if strings.Contains(stmt, "TEXT[]") {
			t.Fatalf("unexpected array column in %q", stmt)
		}
	}
	if tables != 3 {
		t.Fatalf("expected 3 tables, got %d", tables)
	}

	for _, table := range []string{TableConversations, TableMessages, TableUsageEvents} {
		if !strings.Contains(strings.Join(conn.stmts, "\n"), ns.Table(table)) {
			t.Fatalf("missing table %s", table)
		}
	}

	t.Run("error de exec", func(t *testing.T) {
		conn := &recordingConn{failOn: "CREATE INDEX", execErr: errors.New("denied")}
		err := EnsureSchema(ctx, &fixedExecutor{conn: conn}, ns)
		if err == nil || !strings.Contains(err.Error(), "denied") {
			t.Fatalf("expected wrapped exec error, got %v", err)
		}
	})
}
