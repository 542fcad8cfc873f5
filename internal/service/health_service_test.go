package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/repository"
	"fund-directory/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== MOCKS =====

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) PingContext(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fakeProbe struct {
	status   model.CacheStatus
	probeErr error
	probes   int
}

func (p *fakeProbe) Status() model.CacheStatus {
	return p.status
}

func (p *fakeProbe) Probe(context.Context) error {
	p.probes++
	return p.probeErr
}

type fakeChecker struct {
	name   string
	result model.CheckResult
	delay  time.Duration
}

func (c *fakeChecker) Name() string {
	return c.name
}

func (c *fakeChecker) Check(ctx context.Context) model.CheckResult {
	select {
	case <-time.After(c.delay):
		return c.result
	case <-ctx.Done():
		return model.CheckResult{Status: model.CheckFail, Message: ctx.Err().Error()}
	}
}

// ===== TESTS =====

func TestAggregateStatus(t *testing.T) {
	pass := model.CheckResult{Status: model.CheckPass}
	warn := model.CheckResult{Status: model.CheckWarn}
	fail := model.CheckResult{Status: model.CheckFail}

	tests := []struct {
		name   string
		checks map[string]model.CheckResult
		want   model.OverallStatus
	}{
		{"всё в порядке", map[string]model.CheckResult{model.CheckDatabase: pass, model.CheckRedis: pass}, model.StatusHealthy},
		{"кэш не настроен", map[string]model.CheckResult{model.CheckDatabase: pass, model.CheckRedis: warn}, model.StatusDegraded},
		{"кэш упал", map[string]model.CheckResult{model.CheckDatabase: pass, model.CheckRedis: fail}, model.StatusDegraded},
		{"база медленная", map[string]model.CheckResult{model.CheckDatabase: warn, model.CheckRedis: pass}, model.StatusDegraded},
		{"база упала", map[string]model.CheckResult{model.CheckDatabase: fail, model.CheckRedis: pass}, model.StatusUnhealthy},
		{"всё упало", map[string]model.CheckResult{model.CheckDatabase: fail, model.CheckRedis: fail}, model.StatusUnhealthy},
		{"нет проверок", map[string]model.CheckResult{}, model.StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.AggregateStatus(tt.checks))
		})
	}
}

// 1. Проверки выполняются параллельно, зависшая проверка обрывается по таймауту
func TestHealthService_Report(t *testing.T) {
	healthService := service.NewHealthService("1.2.3", &config.HealthConfig{CheckTimeout: "100ms"},
		&fakeChecker{name: model.CheckDatabase, result: model.CheckResult{Status: model.CheckPass}, delay: 50 * time.Millisecond},
		&fakeChecker{name: model.CheckRedis, result: model.CheckResult{Status: model.CheckPass}, delay: time.Hour},
	)

	start := time.Now()
	report := healthService.Report(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "1.2.3", report.Version)
	assert.Equal(t, model.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, model.CheckPass, report.Checks[model.CheckDatabase].Status)
	assert.Equal(t, model.CheckFail, report.Checks[model.CheckRedis].Status)
	assert.GreaterOrEqual(t, report.Uptime, int64(0))
}

// 2. Liveness пингует только базу и не запускает переподключение кэша
func TestHealthService_Liveness(t *testing.T) {
	healthConfig := &config.HealthConfig{CheckTimeout: "1s", DBWarnLatency: "1h"}

	t.Run("база доступна", func(t *testing.T) {
		db := new(MockPinger)
		db.On("PingContext", mock.Anything).Return(nil)
		probe := &fakeProbe{status: model.CacheStatus{Configured: true, State: model.ConnConnected}}

		healthService := service.NewHealthService("1.2.3", healthConfig,
			service.NewDatabaseChecker(db, healthConfig),
			service.NewRedisChecker(probe),
		)

		assert.Equal(t, model.CheckPass, healthService.Liveness(context.Background()).Status)
		assert.Equal(t, model.CheckPass, healthService.Liveness(context.Background()).Status)
		assert.Zero(t, probe.probes)
		db.AssertNumberOfCalls(t, "PingContext", 2)

		healthService.Report(context.Background())
		assert.Equal(t, 1, probe.probes)
	})

	t.Run("база упала", func(t *testing.T) {
		db := new(MockPinger)
		db.On("PingContext", mock.Anything).Return(errors.New("connection refused"))
		probe := &fakeProbe{status: model.CacheStatus{Configured: true, State: model.ConnConnecting}}

		healthService := service.NewHealthService("1.2.3", healthConfig,
			service.NewRedisChecker(probe),
			service.NewDatabaseChecker(db, healthConfig),
		)

		result := healthService.Liveness(context.Background())
		assert.Equal(t, model.CheckFail, result.Status)
		assert.Equal(t, "connection refused", result.Message)
		assert.Zero(t, probe.probes)
	})

	t.Run("без проверки базы", func(t *testing.T) {
		healthService := service.NewHealthService("1.2.3", healthConfig)
		assert.Equal(t, model.CheckPass, healthService.Liveness(context.Background()).Status)
	})
}

func TestDatabaseChecker(t *testing.T) {
	tests := []struct {
		name        string
		warnLatency string
		pingErr     error
		wantStatus  model.CheckStatus
		wantMessage string
	}{
		{name: "ping прошёл", warnLatency: "1h", wantStatus: model.CheckPass},
		{name: "медленный ответ", warnLatency: "1ns", wantStatus: model.CheckWarn, wantMessage: "slow response"},
		{name: "ping упал", warnLatency: "1h", pingErr: errors.New("connection refused"), wantStatus: model.CheckFail, wantMessage: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockPinger)
			call := db.On("PingContext", mock.Anything).Return(tt.pingErr)
			if tt.wantStatus == model.CheckWarn {
				call.After(2 * time.Millisecond)
			}

			checker := service.NewDatabaseChecker(db, &config.HealthConfig{DBWarnLatency: tt.warnLatency})
			result := checker.Check(context.Background())

			assert.Equal(t, model.CheckDatabase, checker.Name())
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantMessage, result.Message)
			assert.NotNil(t, result.LatencyMs)
			db.AssertExpectations(t)
		})
	}
}

// 3. Отказ кэша никогда не делает сервис unhealthy
func TestRedisChecker(t *testing.T) {
	probeErr := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

	tests := []struct {
		name        string
		probe       *fakeProbe
		wantStatus  model.CheckStatus
		wantMessage string
	}{
		{
			name:       "подключен",
			probe:      &fakeProbe{status: model.CacheStatus{Configured: true, State: model.ConnConnected}},
			wantStatus: model.CheckPass,
		},
		{
			name:        "переподключение уже идёт",
			probe:       &fakeProbe{status: model.CacheStatus{Configured: true, State: model.ConnConnecting}, probeErr: model.ErrCacheProbeInFlight},
			wantStatus:  model.CheckWarn,
			wantMessage: "reconnecting",
		},
		{
			name:        "попытки исчерпаны",
			probe:       &fakeProbe{status: model.CacheStatus{Configured: true, State: model.ConnDegraded}, probeErr: probeErr},
			wantStatus:  model.CheckWarn,
			wantMessage: "degraded: " + probeErr.Error(),
		},
		{
			name:        "соединение потеряно",
			probe:       &fakeProbe{status: model.CacheStatus{Configured: true, State: model.ConnConnecting}, probeErr: probeErr},
			wantStatus:  model.CheckFail,
			wantMessage: probeErr.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.NewRedisChecker(tt.probe).Check(context.Background())

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantMessage, result.Message)
		})
	}

	t.Run("не настроен", func(t *testing.T) {
		checker := service.NewRedisChecker(repository.NewCacheRepository(nil))
		result := checker.Check(context.Background())

		assert.Equal(t, model.CheckRedis, checker.Name())
		assert.Equal(t, model.CheckWarn, result.Status)
		assert.Equal(t, "not configured", result.Message)
		assert.Nil(t, result.LatencyMs)
	})
}
