package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/mocks"
)

func TestEmitWritesPendingEvent(t *testing.T) {
	repo := new(mocks.OutboxRepository)
	svc := NewService(repo)

	var saved *model.OutboxEvent
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.OutboxEvent")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.OutboxEvent) }).
		Return(nil)

	err := svc.Emit(context.Background(), PaymentSucceeded, map[string]string{"payment_id": "p1"})
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Equal(t, PaymentSucceeded, saved.EventType)
	assert.Equal(t, model.OutboxStatusPending, saved.Status)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(saved.Payload, &payload))
	assert.Equal(t, "p1", payload["payment_id"])
	repo.AssertExpectations(t)
}

func TestRecordPropagatesRepositoryError(t *testing.T) {
	repo := new(mocks.OutboxRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	err := NewService(repo).Record(context.Background(), "CLIENT_CREATE", []byte(`{}`))
	assert.ErrorContains(t, err, "db down")
}

func TestEmitRejectsUnmarshalablePayload(t *testing.T) {
	repo := new(mocks.OutboxRepository)

	err := NewService(repo).Emit(context.Background(), "X", make(chan int))
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
