package cache

import (
	"context"
	"time"
)

// Cache es una caché clave-valor con valores serializados en JSON.
// La usan el cache-aside del catálogo y el filtro de idempotencia de suscriptores.
type Cache interface {
	// Get rellena dest (un puntero). (false, nil) es un miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set guarda el valor. ttl <= 0 aplica el TTL por defecto de la implementación.
	Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error

	// Exists comprueba la clave sin deserializar el valor.
	Exists(ctx context.Context, key string) (bool, error)

	Delete(ctx context.Context, key string) error
}
