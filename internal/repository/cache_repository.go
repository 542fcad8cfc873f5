package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/util"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var errNotDue = errors.New("ещё не время для новой попытки подключения")

// cacheBackend : вариант хранилища. Ошибки остаются внутри CacheRepository.
type cacheBackend interface {
	get(ctx context.Context, key string) (string, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	del(ctx context.Context, key string) (int64, error)
	exists(ctx context.Context, key string) (int64, error)
	ttl(ctx context.Context, key string) (time.Duration, error)
	incr(ctx context.Context, key string, window time.Duration) (int64, error)
	connect(ctx context.Context) error
	probe(ctx context.Context) error
	status() model.CacheStatus
	close() error
}

// CacheRepository : кэш, который никогда не возвращает ошибок.
// Redis не настроен или недоступен - значит значения нет.
type CacheRepository struct {
	backend cacheBackend
	log     *log.Entry
}

// NewCacheRepository : nil клиент даёт ненастроенный вариант
func NewCacheRepository(rdb *config.RedisClient) *CacheRepository {
	logger := util.Component("cache")
	if rdb == nil || rdb.Client == nil {
		return &CacheRepository{backend: notConfiguredBackend{}, log: logger}
	}
	return &CacheRepository{
		backend: &configuredBackend{
			client:  rdb.Client,
			tracker: newConnectionTracker(rdb.Policy, time.Now),
			log:     logger,
		},
		log: logger,
	}
}

// Connect : первичное подключение с ограниченным числом попыток.
// Ошибка не фатальна, кэш продолжит работать в режиме fail-open.
func (r *CacheRepository) Connect(ctx context.Context) error {
	return r.backend.connect(ctx)
}

func (r *CacheRepository) Close() error {
	return r.backend.close()
}

func (r *CacheRepository) Status() model.CacheStatus {
	return r.backend.status()
}

// Probe : принудительная проверка соединения для health
func (r *CacheRepository) Probe(ctx context.Context) error {
	return r.backend.probe(ctx)
}

func (r *CacheRepository) Get(ctx context.Context, key string, dest any) bool {
	if key == "" {
		return false
	}
	val, err := r.backend.get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.debug("get", key, err)
		}
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		r.log.WithField("key", key).Debugf("значение в кэше не разобрано: %v", err)
		return false
	}
	return true
}

func (r *CacheRepository) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if key == "" {
		return false
	}
	data, err := json.Marshal(value)
	if err != nil {
		r.log.WithField("key", key).Warnf("ошибка сериализации значения для кэша: %v", err)
		return false
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := r.backend.set(ctx, key, data, ttl); err != nil {
		r.debug("set", key, err)
		return false
	}
	return true
}

func (r *CacheRepository) Delete(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	n, err := r.backend.del(ctx, key)
	if err != nil {
		r.debug("del", key, err)
		return false
	}
	return n > 0
}

func (r *CacheRepository) Exists(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	n, err := r.backend.exists(ctx, key)
	if err != nil {
		r.debug("exists", key, err)
		return false
	}
	return n > 0
}

// TTL : оставшееся время жизни в секундах, model.TTLNoKey или model.TTLNoExpiry
func (r *CacheRepository) TTL(ctx context.Context, key string) int64 {
	if key == "" {
		return model.TTLNoKey
	}
	d, err := r.backend.ttl(ctx, key)
	if err != nil {
		r.debug("ttl", key, err)
		return model.TTLNoKey
	}

	// go-redis отдаёт -1/-2 как есть, без умножения на точность
	switch d {
	case time.Duration(model.TTLNoKey):
		return model.TTLNoKey
	case time.Duration(model.TTLNoExpiry):
		return model.TTLNoExpiry
	}
	return int64(d / time.Second)
}

// Increment : счётчик фиксированного окна. Окно начинается с первого инкремента.
func (r *CacheRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, bool) {
	if key == "" {
		return 0, false
	}
	n, err := r.backend.incr(ctx, key, window)
	if err != nil {
		r.debug("incr", key, err)
		return 0, false
	}
	return n, true
}

func (r *CacheRepository) debug(op, key string, err error) {
	r.log.WithFields(log.Fields{
		"op":  op,
		"key": key,
	}).Debugf("кэш недоступен: %v", err)
}

// notConfiguredBackend : REDIS_URL не задан
type notConfiguredBackend struct{}

func (notConfiguredBackend) get(context.Context, string) (string, error) {
	return "", model.ErrCacheNotConfigured
}

func (notConfiguredBackend) set(context.Context, string, []byte, time.Duration) error {
	return model.ErrCacheNotConfigured
}

func (notConfiguredBackend) del(context.Context, string) (int64, error) {
	return 0, model.ErrCacheNotConfigured
}

func (notConfiguredBackend) exists(context.Context, string) (int64, error) {
	return 0, model.ErrCacheNotConfigured
}

func (notConfiguredBackend) ttl(context.Context, string) (time.Duration, error) {
	return 0, model.ErrCacheNotConfigured
}

func (notConfiguredBackend) incr(context.Context, string, time.Duration) (int64, error) {
	return 0, model.ErrCacheNotConfigured
}

func (notConfiguredBackend) connect(context.Context) error {
	return nil
}

func (notConfiguredBackend) probe(context.Context) error {
	return model.ErrCacheNotConfigured
}

func (notConfiguredBackend) status() model.CacheStatus {
	return model.CacheStatus{Configured: false, State: model.ConnDisconnected}
}

func (notConfiguredBackend) close() error {
	return nil
}

// configuredBackend : Redis с машиной состояний переподключения
type configuredBackend struct {
	client  *redis.Client
	tracker *connectionTracker
	log     *log.Entry
}

func (b *configuredBackend) get(ctx context.Context, key string) (string, error) {
	if err := b.ready(ctx); err != nil {
		return "", err
	}
	val, err := b.client.Get(ctx, key).Result()
	return val, b.observe(err)
}

func (b *configuredBackend) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.ready(ctx); err != nil {
		return err
	}
	cmd := b.client.Set(ctx, key, value, ttl)
	if err := b.observe(cmd.Err()); err != nil {
		return err
	}
	if cmd.Val() != "OK" {
		return fmt.Errorf("неожиданный ответ Redis: %s", cmd.Val())
	}
	return nil
}

func (b *configuredBackend) del(ctx context.Context, key string) (int64, error) {
	if err := b.ready(ctx); err != nil {
		return 0, err
	}
	n, err := b.client.Del(ctx, key).Result()
	return n, b.observe(err)
}

func (b *configuredBackend) exists(ctx context.Context, key string) (int64, error) {
	if err := b.ready(ctx); err != nil {
		return 0, err
	}
	n, err := b.client.Exists(ctx, key).Result()
	return n, b.observe(err)
}

func (b *configuredBackend) ttl(ctx context.Context, key string) (time.Duration, error) {
	if err := b.ready(ctx); err != nil {
		return 0, err
	}
	d, err := b.client.TTL(ctx, key).Result()
	return d, b.observe(err)
}

func (b *configuredBackend) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := b.ready(ctx); err != nil {
		return 0, err
	}
	n, err := b.client.Incr(ctx, key).Result()
	if err := b.observe(err); err != nil {
		return 0, err
	}
	if n == 1 && window > 0 {
		if err := b.observe(b.client.Expire(ctx, key, window).Err()); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (b *configuredBackend) connect(ctx context.Context) error {
	for {
		err := b.tracker.beginAttempt(false)
		switch {
		case err == nil:
			if err = b.ping(ctx); err == nil {
				b.log.Info("подключение к Redis успешно выполнено")
				return nil
			}
		case !errors.Is(err, errNotDue):
			return err
		}

		status := b.tracker.snapshot()
		if status.State == model.ConnDegraded {
			b.log.WithField("attempts", b.tracker.policy.MaxAttempts).
				Warnf("Redis недоступен, кэш работает в режиме деградации: %s", status.LastError)
			return fmt.Errorf("redis недоступен: %s", status.LastError)
		}

		timer := time.NewTimer(b.tracker.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *configuredBackend) probe(ctx context.Context) error {
	if err := b.tracker.beginAttempt(true); err != nil {
		return err
	}
	return b.ping(ctx)
}

func (b *configuredBackend) status() model.CacheStatus {
	return b.tracker.snapshot()
}

func (b *configuredBackend) close() error {
	b.tracker.close()
	if err := b.client.Close(); err != nil {
		return util.LogError("ошибка закрытия соединения с Redis", err)
	}
	return nil
}

// ready : команды идут в Redis только в состоянии Connected,
// иначе вызывающий может провести одну пробную попытку, если она положена
func (b *configuredBackend) ready(ctx context.Context) error {
	if b.tracker.connected() {
		return nil
	}
	if err := b.tracker.beginAttempt(false); err != nil {
		return err
	}
	return b.ping(ctx)
}

func (b *configuredBackend) ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		state := b.tracker.fail(err)
		b.log.WithField("state", state.String()).Debugf("ping Redis не прошёл: %v", err)
		return err
	}
	b.tracker.succeed()
	return nil
}

// observe : транспортная ошибка переводит соединение в Disconnected
func (b *configuredBackend) observe(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if isTransportError(err) {
		b.tracker.lost(err)
		b.log.Warnf("соединение с Redis потеряно: %v", err)
	}
	return err
}

func isTransportError(err error) bool {
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
