package ports

//go:generate mockgen -source=health.go -destination=mocks/mock_health.go -package=mocks

import "context"

// HealthChecker is one dependency reported under /health. Ping should return
// within a second or two and must not mutate ledger state.
type HealthChecker interface {
	Ping(ctx context.Context) error
	// Name keys the dependency in the report: "postgres", "redis" or "memory".
	Name() string
}
