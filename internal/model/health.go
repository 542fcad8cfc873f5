package model

import "time"

type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

type OverallStatus string

const (
	StatusHealthy   OverallStatus = "healthy"
	StatusDegraded  OverallStatus = "degraded"
	StatusUnhealthy OverallStatus = "unhealthy"
)

// CheckResult : результат проверки одной зависимости
type CheckResult struct {
	Status    CheckStatus `json:"status"`
	LatencyMs *int64      `json:"latency_ms,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// HealthReport : подробный отчёт о состоянии сервиса
type HealthReport struct {
	Status    OverallStatus          `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    int64                  `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

const (
	CheckDatabase = "database"
	CheckRedis    = "redis"
)
