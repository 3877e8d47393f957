package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/identity"
)

// ErrNotConfigured se devuelve cuando no hay warehouse (persistencia apagada).
var ErrNotConfigured = errors.New("warehouse not configured")

// DBTX es lo que necesitan los repositorios; lo cumplen *pgxpool.Pool y *pgx.Conn.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Executor entrega un DBTX por llamada junto con su funcion de liberacion.
type Executor interface {
	Conn(ctx context.Context) (DBTX, func(), error)
}

// Warehouse resuelve la conexion a usar segun el modo de autenticacion.
// En modo USER abre una conexion dedicada con el token reenviado como password.
type Warehouse struct {
	pool       *pgxpool.Pool
	connConfig *pgx.ConnConfig
	runAsUser  bool
	logger     *zap.Logger
	connect    func(ctx context.Context, cfg *pgx.ConnConfig) (*pgx.Conn, error)
}

func NewWarehouse(pool *pgxpool.Pool, runAsUser bool, logger *zap.Logger) *Warehouse {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Warehouse{
		pool:      pool,
		runAsUser: runAsUser,
		logger:    logger,
		connect:   pgx.ConnectConfig,
	}
	if pool != nil {
		w.connConfig = pool.Config().ConnConfig
	}
	return w
}

// Enabled indica si hay un pool disponible.
func (w *Warehouse) Enabled() bool {
	return w != nil && w.pool != nil
}

// Conn devuelve el ejecutor para esta llamada. release siempre es no-nil.
func (w *Warehouse) Conn(ctx context.Context) (DBTX, func(), error) {
	if !w.Enabled() {
		return nil, func() {}, ErrNotConfigured
	}

	id, ok := identity.FromContext(ctx)
	if !w.runAsUser || !ok || id.AuthMode != domain.AuthModeUser {
		return w.pool, func() {}, nil
	}

	cfg := w.connConfig.Copy()
	if user := userConnName(id); user != "" {
		cfg.User = user
	}
	cfg.Password = id.AccessToken

	conn, err := w.connect(ctx, cfg)
	if err != nil {
		w.logger.Warn("user connection failed, falling back to app credentials",
			zap.String("user_id", id.UserID),
			zap.Error(err),
		)
		return w.pool, func() {}, nil
	}

	release := func() {
		// Contexto propio: el del request puede estar cancelado.
		if err := conn.Close(context.Background()); err != nil {
			w.logger.Warn("close user connection", zap.Error(err))
		}
	}
	return conn, release, nil
}

func userConnName(id domain.Identity) string {
	if id.Email != "" {
		return id.Email
	}
	return id.ForwardedUser
}

// CurrentUser devuelve el usuario SQL efectivo del warehouse.
func (w *Warehouse) CurrentUser(ctx context.Context) (string, error) {
	conn, release, err := w.Conn(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	var user string
	if err := conn.QueryRow(ctx, "SELECT current_user").Scan(&user); err != nil {
		return "", err
	}
	return user, nil
}

// Ping verifica el pool del warehouse.
func (w *Warehouse) Ping(ctx context.Context) error {
	if !w.Enabled() {
		return ErrNotConfigured
	}
	return Ping(ctx, w.pool)
}
