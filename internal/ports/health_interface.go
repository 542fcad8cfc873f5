package ports

import (
	"context"

	"fund-directory/internal/model"
)

// HealthChecker : проверка одной зависимости
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) model.CheckResult
}

type HealthService interface {
	Report(ctx context.Context) model.HealthReport
	// Liveness : только база, кэш не трогается
	Liveness(ctx context.Context) model.CheckResult
}
