// Package cache provee el result cache del cliente: resultados de queries
// remotas keyed por familia, con invalidación por prefijo y clear total.
//
// Soporta:
//   - Memory (in-process, default)
//   - Redis (compartido entre procesos del mismo perfil)
//
// Las familias learner-scoped (lessons, quizzes, progress, mastery) se
// invalidan en bloque al cambiar de learner; Clear() es el hard boundary
// del logout.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones del result cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix elimina todas las keys bajo un prefijo (una familia).
	// Retorna cuántas keys eliminó.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Clear elimina todas las keys. Usado por logout.
	Clear(ctx context.Context) error

	// Snapshot serializa el contenido vigente (para persistir entre sesiones).
	Snapshot(ctx context.Context) ([]byte, error)

	// Restore carga un snapshot previo. Datos ilegibles se ignoran.
	Restore(ctx context.Context, data []byte) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// DefaultTTL aplica cuando Set recibe ttl=0 y el driver es memory.
	DefaultTTL time.Duration
}

// ErrNotFound indica que la key no existe.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
