package memory

import (
	"context"

	"vending-gateway/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates an AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

// Create appends an audit entry.
func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audits = append(r.store.audits, *log)
	return nil
}

// Entries returns a copy of all audit entries.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]domain.AuditLog(nil), r.store.audits...)
}
