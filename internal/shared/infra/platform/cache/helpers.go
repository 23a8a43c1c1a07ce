package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const backgroundSetTimeout = 200 * time.Millisecond

// SetInBackground escribe en la caché sin bloquear al llamante. Un fallo solo se loguea.
func SetInBackground(c Cache, key string, value interface{}, ttl time.Duration, log *zap.Logger) {
	if c == nil {
		return
	}

	go func() {
		// Contexto propio: la petición original puede haber terminado ya.
		ctx, cancel := context.WithTimeout(context.Background(), backgroundSetTimeout)
		defer cancel()

		if err := c.Set(ctx, key, value, ttl); err != nil {
			log.Warn("Cache update failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

// Lookup implementa cache-aside: devuelve el valor cacheado o lo carga con load y
// rellena la caché en background. Un error de la caché se trata como miss.
func Lookup[T any](ctx context.Context, c Cache, key string, ttl time.Duration, log *zap.Logger, load func(context.Context) (T, error)) (T, error) {
	if c != nil {
		var cached T
		hit, err := c.Get(ctx, key, &cached)
		if err != nil {
			log.Debug("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	SetInBackground(c, key, value, ttl, log)
	return value, nil
}
