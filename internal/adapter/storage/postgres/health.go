package postgres

import (
	"context"
	"fmt"
	"time"
)

const pingTimeout = 2 * time.Second

// requiredTables must exist before the gateway can take payments.
var requiredTables = []string{"owners", "wallets", "ledger_entries", "inventory_units", "payment_events"}

const schemaQuery = `SELECT COUNT(*) FROM pg_catalog.pg_tables
WHERE schemaname = current_schema() AND tablename = ANY($1)`

// HealthCheck reports whether the database is reachable and migrated.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping fails when the database is down or any ledger table is missing.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var found int
	if err := h.pool.QueryRow(ctx, schemaQuery, requiredTables).Scan(&found); err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	if found != len(requiredTables) {
		return fmt.Errorf("schema incomplete: %d of %d ledger tables present", found, len(requiredTables))
	}
	return nil
}

func (h *HealthCheck) Name() string { return "postgres" }
