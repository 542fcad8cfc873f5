package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/ports"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// DatabaseChecker : отказ базы делает весь сервис unhealthy
type DatabaseChecker struct {
	db          pinger
	warnLatency time.Duration
}

func NewDatabaseChecker(db pinger, cfg *config.HealthConfig) *DatabaseChecker {
	return &DatabaseChecker{db: db, warnLatency: cfg.DBWarnLatencyDuration()}
}

func (c *DatabaseChecker) Name() string {
	return model.CheckDatabase
}

func (c *DatabaseChecker) Check(ctx context.Context) model.CheckResult {
	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start).Milliseconds()

	switch {
	case err != nil:
		return model.CheckResult{Status: model.CheckFail, LatencyMs: &latency, Message: err.Error()}
	case c.warnLatency > 0 && time.Duration(latency)*time.Millisecond > c.warnLatency:
		return model.CheckResult{Status: model.CheckWarn, LatencyMs: &latency, Message: "slow response"}
	default:
		return model.CheckResult{Status: model.CheckPass, LatencyMs: &latency}
	}
}

// RedisChecker : кэш необязателен, поэтому худший итог для сервиса - degraded
type RedisChecker struct {
	cache ports.CacheProbe
}

func NewRedisChecker(cache ports.CacheProbe) *RedisChecker {
	return &RedisChecker{cache: cache}
}

func (c *RedisChecker) Name() string {
	return model.CheckRedis
}

func (c *RedisChecker) Check(ctx context.Context) model.CheckResult {
	if !c.cache.Status().Configured {
		return model.CheckResult{Status: model.CheckWarn, Message: "not configured"}
	}

	start := time.Now()
	err := c.cache.Probe(ctx)
	latency := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		return model.CheckResult{Status: model.CheckPass, LatencyMs: &latency}
	case errors.Is(err, model.ErrCacheProbeInFlight):
		return model.CheckResult{Status: model.CheckWarn, Message: "reconnecting"}
	case c.cache.Status().State == model.ConnDegraded:
		return model.CheckResult{Status: model.CheckWarn, LatencyMs: &latency, Message: "degraded: " + err.Error()}
	default:
		return model.CheckResult{Status: model.CheckFail, LatencyMs: &latency, Message: err.Error()}
	}
}

// HealthService : собирает проверки зависимостей в общий статус
type HealthService struct {
	checkers  []ports.HealthChecker
	version   string
	timeout   time.Duration
	startedAt time.Time
	now       func() time.Time
}

func NewHealthService(version string, cfg *config.HealthConfig, checkers ...ports.HealthChecker) *HealthService {
	return &HealthService{
		checkers:  checkers,
		version:   version,
		timeout:   cfg.CheckTimeoutDuration(),
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Report : проверки выполняются параллельно, каждая со своим таймаутом
func (s *HealthService) Report(ctx context.Context) model.HealthReport {
	checks := make(map[string]model.CheckResult, len(s.checkers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, checker := range s.checkers {
		wg.Add(1)
		go func(checker ports.HealthChecker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			result := checker.Check(checkCtx)

			mu.Lock()
			checks[checker.Name()] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	now := s.now()
	return model.HealthReport{
		Status:    AggregateStatus(checks),
		Timestamp: now.UTC(),
		Version:   s.version,
		Uptime:    int64(now.Sub(s.startedAt).Seconds()),
		Checks:    checks,
	}
}

// Liveness : проверяет только базу. Без проверки базы сервис считается живым
func (s *HealthService) Liveness(ctx context.Context) model.CheckResult {
	for _, checker := range s.checkers {
		if checker.Name() != model.CheckDatabase {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return checker.Check(checkCtx)
	}
	return model.CheckResult{Status: model.CheckPass}
}

// AggregateStatus : отказ базы - unhealthy, любое предупреждение или отказ - degraded
func AggregateStatus(checks map[string]model.CheckResult) model.OverallStatus {
	if db, ok := checks[model.CheckDatabase]; ok && db.Status == model.CheckFail {
		return model.StatusUnhealthy
	}
	for _, check := range checks {
		if check.Status != model.CheckPass {
			return model.StatusDegraded
		}
	}
	return model.StatusHealthy
}
