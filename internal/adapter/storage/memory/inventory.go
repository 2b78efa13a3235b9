package memory

import (
	"context"
	"sort"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// InventoryRepo implements ports.InventoryRepository.
type InventoryRepo struct {
	store *Store
}

// NewInventoryRepo creates an InventoryRepo.
func NewInventoryRepo(store *Store) *InventoryRepo {
	return &InventoryRepo{store: store}
}

// CreateBatch appends units.
func (r *InventoryRepo) CreateBatch(ctx context.Context, tx pgx.Tx, units []domain.InventoryUnit) error {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return err
	}
	s := r.store
	before := len(s.units)
	for i := range units {
		u := units[i]
		s.units = append(s.units, &u)
	}
	mt.onRollback(func() { s.units = s.units[:before] })
	return nil
}

// ReserveNext sells the oldest available unit of the plan.
func (r *InventoryRepo) ReserveNext(ctx context.Context, tx pgx.Tx, req ports.ReserveRequest) (*domain.InventoryUnit, error) {
	mt, err := r.store.txFor(tx)
	if err != nil {
		return nil, err
	}
	var pick *domain.InventoryUnit
	for _, u := range r.store.units {
		if u.ExternalRef != nil && *u.ExternalRef == req.ExternalRef {
			return nil, ports.ErrDuplicateRef
		}
	}
	for _, u := range r.store.units {
		if u.Plan != req.Plan || u.Status != domain.UnitStatusAvailable {
			continue
		}
		if pick == nil || u.CreatedAt.Before(pick.CreatedAt) {
			pick = u
		}
	}
	if pick == nil {
		return nil, nil
	}

	prev := *pick
	now := r.store.now()
	price := req.Price
	ref := req.ExternalRef
	pick.Status = domain.UnitStatusSold
	pick.SoldAt = &now
	pick.BuyerRef = req.BuyerRef
	pick.Price = &price
	pick.ExternalRef = &ref
	mt.onRollback(func() { *pick = prev })

	cp := *pick
	return &cp, nil
}

// GetByExternalRef fetches the unit sold for a reference.
func (r *InventoryRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.InventoryUnit, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.units {
		if u.ExternalRef != nil && *u.ExternalRef == externalRef {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// List returns units filtered by plan and status in FIFO order.
func (r *InventoryRepo) List(ctx context.Context, params ports.InventoryListParams) ([]domain.InventoryUnit, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var all []domain.InventoryUnit
	for _, u := range r.store.units {
		if params.Plan != nil && u.Plan != *params.Plan {
			continue
		}
		if params.Status != nil && u.Status != *params.Status {
			continue
		}
		all = append(all, *u)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	start, end := pageBounds(params.Page, params.PageSize, len(all))
	return all[start:end], int64(len(all)), nil
}

// Stats aggregates stock per plan.
func (r *InventoryRepo) Stats(ctx context.Context) ([]domain.InventoryStats, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	byPlan := make(map[domain.Plan]*domain.InventoryStats)
	for _, u := range r.store.units {
		st, ok := byPlan[u.Plan]
		if !ok {
			st = &domain.InventoryStats{Plan: u.Plan}
			byPlan[u.Plan] = st
		}
		st.Total++
		if u.Status == domain.UnitStatusAvailable {
			st.Available++
		} else {
			st.Sold++
			if u.Price != nil {
				st.Revenue += *u.Price
			}
		}
	}

	out := make([]domain.InventoryStats, 0, len(byPlan))
	for _, st := range byPlan {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plan < out[j].Plan })
	return out, nil
}
