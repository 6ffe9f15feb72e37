// Package store provee el store de credenciales del motor in-process,
// con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (compartido entre procesos)
//
// Opcionalmente cifra los valores at-rest vía secretbox (AES-GCM).
package store

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones del store de credenciales.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Keys retorna las keys que empiezan con prefix, sin orden garantizado.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un store.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// EncryptAtRest cifra los valores con la clave maestra de secretbox
	// (SECRETBOX_MASTER_KEY). Pensado para el driver redis, donde las
	// credenciales salen del proceso.
	EncryptAtRest bool
}

// ErrNotFound indica que la key no existe.
var ErrNotFound = errors.New("store: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New crea un store según la configuración.
func New(cfg Config) (Client, error) {
	var c Client
	var err error
	switch cfg.Driver {
	case "redis":
		c, err = NewRedis(cfg)
	case "memory", "":
		c = NewMemory(cfg.Prefix)
	default:
		c = NewMemory(cfg.Prefix)
	}
	if err != nil {
		return nil, err
	}
	if cfg.EncryptAtRest {
		return NewEncrypted(c)
	}
	return c, nil
}
