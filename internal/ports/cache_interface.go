package ports

import (
	"context"
	"time"

	"fund-directory/internal/model"
)

// CacheRepository : слой кэша поверх необязательного Redis.
// Ни один метод не возвращает ошибку: недоступность кэша равна отсутствию значения.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Exists(ctx context.Context, key string) bool
	TTL(ctx context.Context, key string) int64
	Increment(ctx context.Context, key string, window time.Duration) (int64, bool)
}

// CacheProbe : состояние подключения для health-проверки
type CacheProbe interface {
	Status() model.CacheStatus
	Probe(ctx context.Context) error
}
