package repository

import (
	"context"
	"fmt"

	"servechat/internal/db"
	"servechat/internal/domain"
)

type UsageRepository interface {
	Create(ctx context.Context, event domain.UsageEvent) error
	Summary(ctx context.Context, userID string) (domain.UsageSummary, error)
}

type PgUsageRepository struct {
	exec db.Executor
	ns   db.Namespace
}

func NewPgUsageRepository(exec db.Executor, ns db.Namespace) *PgUsageRepository {
	return &PgUsageRepository{exec: exec, ns: ns}
}

func (r *PgUsageRepository) Create(ctx context.Context, event domain.UsageEvent) error {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return err
	}
	defer release()

	query := fmt.Sprintf(`
		INSERT INTO %s (event_id, conversation_id, user_id, model, tokens_in, tokens_out, cost, created_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ns.Table(db.TableUsageEvents))

	_, err = conn.Exec(ctx, query,
		event.ID,
		event.ConversationID,
		event.UserID,
		event.Model,
		event.TokensIn,
		event.TokensOut,
		event.Cost,
		event.CreatedAt,
		nonNilMeta(event.Meta),
	)
	return err
}

// Summary agrega el uso del usuario; userID vacio agrega todo el warehouse.
// ByDay sale ascendente y ByModel ordenado por costo descendente.
func (r *PgUsageRepository) Summary(ctx context.Context, userID string) (domain.UsageSummary, error) {
	conn, release, err := r.exec.Conn(ctx)
	if err != nil {
		return domain.UsageSummary{}, err
	}
	defer release()

	table := r.ns.Table(db.TableUsageEvents)
	const userFilter = "($1 = '' OR user_id = $1)"

	var summary domain.UsageSummary
	totalsQuery := fmt.Sprintf(`
		SELECT COUNT(DISTINCT conversation_id), COUNT(*),
		       COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0), COALESCE(SUM(cost), 0.0)
		FROM %s
		WHERE %s
	`, table, userFilter)
	err = conn.QueryRow(ctx, totalsQuery, userID).Scan(
		&summary.Totals.Conversations,
		&summary.Totals.Events,
		&summary.Totals.TokensIn,
		&summary.Totals.TokensOut,
		&summary.Totals.Cost,
	)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("usage totals: %w", err)
	}

	dayQuery := fmt.Sprintf(`
		SELECT date_trunc('day', created_at) AS day,
		       COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0), COALESCE(SUM(cost), 0.0)
		FROM %s
		WHERE %s
		GROUP BY day
		ORDER BY day ASC
	`, table, userFilter)
	rows, err := conn.Query(ctx, dayQuery, userID)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("usage by day: %w", err)
	}
	for rows.Next() {
		var d domain.DailyUsage
		if err := rows.Scan(&d.Day, &d.TokensIn, &d.TokensOut, &d.Cost); err != nil {
			rows.Close()
			return domain.UsageSummary{}, err
		}
		d.Tokens = d.TokensIn + d.TokensOut
		summary.ByDay = append(summary.ByDay, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.UsageSummary{}, err
	}

	modelQuery := fmt.Sprintf(`
		SELECT model, COUNT(*),
		       COALESCE(SUM(tokens_in + tokens_out), 0), COALESCE(SUM(cost), 0.0)
		FROM %s
		WHERE %s
		GROUP BY model
		ORDER BY SUM(cost) DESC, model ASC
	`, table, userFilter)
	rows, err = conn.Query(ctx, modelQuery, userID)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("usage by model: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.ModelUsage
		if err := rows.Scan(&m.Model, &m.Events, &m.Tokens, &m.Cost); err != nil {
			return domain.UsageSummary{}, err
		}
		summary.ByModel = append(summary.ByModel, m)
	}
	if err := rows.Err(); err != nil {
		return domain.UsageSummary{}, err
	}
	return summary, nil
}
