package service

import (
	"context"
	"errors"
	"testing"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/internal/core/ports/mocks"
	"vending-gateway/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestReporting_ListPayments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := mocks.NewMockPaymentEventRepository(ctrl)
	svc := NewReportingService(events, mocks.NewMockOwnerRepository(ctrl), mocks.NewMockInventoryRepository(ctrl))

	outcome := domain.PaymentOutcomeDelivered
	params := ports.PaymentEventListParams{Outcome: &outcome, Page: 1, PageSize: 20}
	events.EXPECT().List(gomock.Any(), params).Return([]domain.PaymentEvent{{ExternalRef: "TX-1", Outcome: outcome}}, int64(1), nil)

	list, total, err := svc.ListPayments(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "TX-1", list[0].ExternalRef)
}

func TestReporting_ListPaymentsEmptyIsNotNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := mocks.NewMockPaymentEventRepository(ctrl)
	svc := NewReportingService(events, mocks.NewMockOwnerRepository(ctrl), mocks.NewMockInventoryRepository(ctrl))
	events.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, int64(0), nil)

	list, _, err := svc.ListPayments(context.Background(), ports.PaymentEventListParams{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.NotNil(t, list)
}

func TestReporting_ListPaymentsRejectsUnknownOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewReportingService(mocks.NewMockPaymentEventRepository(ctrl), mocks.NewMockOwnerRepository(ctrl), mocks.NewMockInventoryRepository(ctrl))

	bogus := domain.PaymentOutcomeProcessing
	_, _, err := svc.ListPayments(context.Background(), ports.PaymentEventListParams{Outcome: &bogus})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestReporting_Overview(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := mocks.NewMockPaymentEventRepository(ctrl)
	owners := mocks.NewMockOwnerRepository(ctrl)
	inventory := mocks.NewMockInventoryRepository(ctrl)
	svc := NewReportingService(events, owners, inventory)

	inventory.EXPECT().Stats(gomock.Any()).Return([]domain.InventoryStats{
		{Plan: domain.PlanPlus, Total: 10, Available: 4, Sold: 6, Revenue: 300000},
		{Plan: domain.PlanTeam, Total: 2, Available: 1, Sold: 1, Revenue: 100000},
	}, nil)
	owners.EXPECT().List(gomock.Any(), ports.OwnerListParams{Page: 1, PageSize: 1}).Return(nil, int64(17), nil)
	events.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.PaymentEventListParams) ([]domain.PaymentEvent, int64, error) {
			if p.NeedsReview != nil {
				return nil, 2, nil
			}
			if *p.Outcome == domain.PaymentOutcomeDelivered {
				return nil, 7, nil
			}
			return nil, 1, nil
		}).Times(len(reportedOutcomes) + 1)

	out, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(400000), out.Revenue)
	assert.Equal(t, int64(17), out.Owners)
	assert.Equal(t, int64(7), out.Payments[domain.PaymentOutcomeDelivered])
	assert.Equal(t, int64(1), out.Payments[domain.PaymentOutcomeRejected])
	assert.Equal(t, int64(2), out.PendingReview)
	assert.Len(t, out.Inventory, 2)
	assert.False(t, out.GeneratedAt.IsZero())
}

func TestReporting_OverviewStatsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inventory := mocks.NewMockInventoryRepository(ctrl)
	svc := NewReportingService(mocks.NewMockPaymentEventRepository(ctrl), mocks.NewMockOwnerRepository(ctrl), inventory)
	inventory.EXPECT().Stats(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.Overview(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodePersistenceFailure))
}
