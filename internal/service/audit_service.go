package service

import (
	"context"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const auditWriteTimeout = 3 * time.Second

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService that logs every entry and, when
// repo is non-nil, also persists it.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: logger.Component(log, "audit")}
}

// Log copies entry and records it off the request path. Outcomes that
// cost the buyer money without delivery are logged at warn.
func (s *auditService) Log(ctx context.Context, entry *domain.AuditLog) {
	rec := *entry
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	bg := context.WithoutCancel(ctx)

	go func() {
		ev := s.log.Info()
		switch rec.Action {
		case domain.AuditActionPaymentRejected, domain.AuditActionNoStock, domain.AuditActionStoreCredit:
			ev = s.log.Warn()
		}
		ev.Str("audit_id", rec.ID.String()).
			Str("actor", rec.Actor).
			Str("action", string(rec.Action)).
			Str("resource", rec.ResourceType+"/"+rec.ResourceID).
			Str("ip", rec.IPAddress).
			Msg("audit")

		if s.repo == nil {
			return
		}
		wctx, cancel := context.WithTimeout(bg, auditWriteTimeout)
		defer cancel()
		if err := s.repo.Create(wctx, &rec); err != nil {
			s.log.Error().Err(err).Str("audit_id", rec.ID.String()).Msg("audit entry lost")
		}
	}()
}
