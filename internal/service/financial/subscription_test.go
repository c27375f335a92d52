package financial

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/payment"
)

func TestSubscribeCreatesCustomerAndSubscription(t *testing.T) {
	f := newFixture()
	f.gateway.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(p payment.CustomerParams) bool {
		return p.Name == "Bella" && p.Metadata["clinic_id"] == f.clinic.ID.String()
	})).Return(&payment.Customer{ID: "cus_clinic"}, nil)
	f.clinics.On("UpdateBilling", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(p payment.SubscriptionParams) bool {
		return p.CustomerID == "cus_clinic" && p.PriceID == "price_pro"
	})).Return(&payment.Subscription{ID: "sub_1", Status: "active", CurrentPeriodEnd: 1767225600}, nil)

	clinic, err := f.svc.Subscribe(context.Background(), f.clinic.ID, &model.SubscribeRequest{PriceID: "price_pro", Plan: "pro"})
	require.NoError(t, err)
	assert.Equal(t, "pro", clinic.Plan)
	assert.Equal(t, "sub_1", *clinic.SubscriptionID)
	assert.Equal(t, "active", *clinic.SubscriptionStatus)
	f.clinics.AssertNumberOfCalls(t, "UpdateBilling", 2)
}

func TestSubscribeTwiceConflicts(t *testing.T) {
	f := newFixture()
	subID, status := "sub_1", "trialing"
	f.clinic.SubscriptionID = &subID
	f.clinic.SubscriptionStatus = &status

	_, err := f.svc.Subscribe(context.Background(), f.clinic.ID, &model.SubscribeRequest{PriceID: "price_pro"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	f.gateway.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
}

func TestCancelSubscription(t *testing.T) {
	f := newFixture()
	subID, status := "sub_1", "active"
	f.clinic.SubscriptionID = &subID
	f.clinic.SubscriptionStatus = &status
	f.gateway.On("CancelSubscription", mock.Anything, "sub_1").Return(&payment.Subscription{ID: "sub_1", Status: "canceled"}, nil)
	f.clinics.On("UpdateBilling", mock.Anything, mock.Anything).Return(nil)

	clinic, err := f.svc.CancelSubscription(context.Background(), f.clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", *clinic.SubscriptionStatus)
}

func TestCancelWithoutSubscriptionConflicts(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CancelSubscription(context.Background(), f.clinic.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}
