package service

import (
	"errors"
	"fmt"

	"servechat/internal/db"
	"servechat/internal/repository"
)

var (
	// ErrPersistenceDisabled: no hay warehouse configurado; historial y analitica no existen.
	ErrPersistenceDisabled = errors.New("persistence not configured")
	// ErrPersistenceUnavailable: el warehouse fallo; el chat sigue funcionando.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrInvalidInput           = errors.New("invalid input")
	ErrChatNotConfigured      = errors.New("chat service not configured")
	ErrConversationNotFound   = repository.ErrConversationNotFound
)

// persistenceError clasifica un error de repositorio en uno de los tipos de arriba.
func persistenceError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrConversationNotFound):
		return err
	case errors.Is(err, db.ErrNotConfigured):
		return ErrPersistenceDisabled
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistenceUnavailable, err)
}
