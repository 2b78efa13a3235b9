package service

import (
	"context"
	"fmt"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"
)

// reportedOutcomes are the terminal outcomes counted in the overview.
var reportedOutcomes = []domain.PaymentOutcome{
	domain.PaymentOutcomeCredited,
	domain.PaymentOutcomeDelivered,
	domain.PaymentOutcomeStoreCredit,
	domain.PaymentOutcomeNoStock,
	domain.PaymentOutcomeRejected,
}

// reportingService implements ports.ReportingService.
type reportingService struct {
	events    ports.PaymentEventRepository
	owners    ports.OwnerRepository
	inventory ports.InventoryRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	events ports.PaymentEventRepository,
	owners ports.OwnerRepository,
	inventory ports.InventoryRepository,
) ports.ReportingService {
	return &reportingService{
		events:    events,
		owners:    owners,
		inventory: inventory,
	}
}

// ListPayments returns a paginated list of processed gateway callbacks.
func (s *reportingService) ListPayments(ctx context.Context, params ports.PaymentEventListParams) ([]domain.PaymentEvent, int64, error) {
	if params.Outcome != nil {
		valid := false
		for _, o := range reportedOutcomes {
			if *params.Outcome == o {
				valid = true
				break
			}
		}
		if !valid {
			return nil, 0, apperror.Validation(fmt.Sprintf("invalid outcome %q", *params.Outcome))
		}
	}

	events, total, err := s.events.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrPersistence(fmt.Errorf("list payment events: %w", err))
	}
	if events == nil {
		events = []domain.PaymentEvent{}
	}
	return events, total, nil
}

// Overview aggregates stock, revenue, owner count and outcome counts.
func (s *reportingService) Overview(ctx context.Context) (*domain.Overview, error) {
	stats, err := s.inventory.Stats(ctx)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("inventory stats: %w", err))
	}

	out := &domain.Overview{
		Inventory:   stats,
		Payments:    make(map[domain.PaymentOutcome]int64, len(reportedOutcomes)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, st := range stats {
		out.Revenue += st.Revenue
	}

	_, out.Owners, err = s.owners.List(ctx, ports.OwnerListParams{Page: 1, PageSize: 1})
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("count owners: %w", err))
	}

	for _, o := range reportedOutcomes {
		outcome := o
		_, n, err := s.events.List(ctx, ports.PaymentEventListParams{Outcome: &outcome, Page: 1, PageSize: 1})
		if err != nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("count %s payments: %w", o, err))
		}
		out.Payments[o] = n
	}

	review := true
	_, out.PendingReview, err = s.events.List(ctx, ports.PaymentEventListParams{NeedsReview: &review, Page: 1, PageSize: 1})
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("count pending reviews: %w", err))
	}

	return out, nil
}
