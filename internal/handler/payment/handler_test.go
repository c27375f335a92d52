package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators(model.Validators())
}

type mockService struct{ mock.Mock }

func (m *mockService) CreatePaymentIntent(ctx context.Context, clinicID uuid.UUID, req *model.CreatePaymentIntentRequest) (*model.PaymentIntentResult, error) {
	args := m.Called(ctx, clinicID, req)
	r, _ := args.Get(0).(*model.PaymentIntentResult)
	return r, args.Error(1)
}

func (m *mockService) Refund(ctx context.Context, clinicID, id uuid.UUID, req *model.RefundRequest) (*model.Payment, error) {
	args := m.Called(ctx, clinicID, id, req)
	p, _ := args.Get(0).(*model.Payment)
	return p, args.Error(1)
}

func (m *mockService) GetPayment(ctx context.Context, clinicID, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, clinicID, id)
	p, _ := args.Get(0).(*model.Payment)
	return p, args.Error(1)
}

func (m *mockService) ListPayments(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, int64, error) {
	args := m.Called(ctx, filters)
	p, _ := args.Get(0).([]*model.Payment)
	return p, args.Get(1).(int64), args.Error(2)
}

func (m *mockService) Summary(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) (*model.FinancialSummary, error) {
	args := m.Called(ctx, clinicID, from, to)
	s, _ := args.Get(0).(*model.FinancialSummary)
	return s, args.Error(1)
}

func (m *mockService) Subscribe(ctx context.Context, clinicID uuid.UUID, req *model.SubscribeRequest) (*model.Clinic, error) {
	args := m.Called(ctx, clinicID, req)
	c, _ := args.Get(0).(*model.Clinic)
	return c, args.Error(1)
}

func (m *mockService) CancelSubscription(ctx context.Context, clinicID uuid.UUID) (*model.Clinic, error) {
	args := m.Called(ctx, clinicID)
	c, _ := args.Get(0).(*model.Clinic)
	return c, args.Error(1)
}

func setupRouter(svc *mockService, clinicID uuid.UUID) *gin.Engine {
	h := NewHandler(svc)
	r := gin.New()
	g := r.Group("/clinics/:clinicID", func(c *gin.Context) {
		c.Set(middleware.ContextClinicID, clinicID)
	})
	g.GET("/payments", h.ListPayments)
	g.GET("/payments/summary", h.Summary)
	g.POST("/payments", h.CreatePaymentIntent)
	g.POST("/payments/:paymentID/refund", h.Refund)
	g.DELETE("/subscription", h.CancelSubscription)
	return r
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePaymentIntentPassesIdempotencyKey(t *testing.T) {
	clinicID := uuid.New()
	longKey := strings.Repeat("k", 300)

	tests := []struct {
		name    string
		header  string
		wantKey string
	}{
		{name: "no header", header: "", wantKey: ""},
		{name: "trimmed", header: "  order-42  ", wantKey: "order-42"},
		{name: "capped", header: longKey, wantKey: longKey[:255]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockService)
			result := &model.PaymentIntentResult{
				Payment:      &model.Payment{ClinicID: clinicID, AmountCents: 15000, Currency: "brl"},
				ClientSecret: "pi_123_secret",
			}
			svc.On("CreatePaymentIntent", mock.Anything, clinicID, mock.MatchedBy(func(req *model.CreatePaymentIntentRequest) bool {
				return req.AmountCents == 15000 && req.IdempotencyKey == tt.wantKey
			})).Return(result, nil)

			headers := map[string]string{}
			if tt.header != "" {
				headers[HeaderIdempotencyKey] = tt.header
			}
			w := do(setupRouter(svc, clinicID), http.MethodPost, "/clinics/"+clinicID.String()+"/payments",
				`{"amount_cents":15000}`, headers)

			assert.Equal(t, http.StatusCreated, w.Code)
			assert.Contains(t, w.Body.String(), "pi_123_secret")
			svc.AssertExpectations(t)
		})
	}
}

func TestCreatePaymentIntentRejectsNonPositiveAmount(t *testing.T) {
	clinicID := uuid.New()
	svc := new(mockService)

	w := do(setupRouter(svc, clinicID), http.MethodPost, "/clinics/"+clinicID.String()+"/payments", `{"amount_cents":0}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePaymentIntentGatewayFailure(t *testing.T) {
	clinicID := uuid.New()
	svc := new(mockService)
	svc.On("CreatePaymentIntent", mock.Anything, clinicID, mock.Anything).
		Return(nil, apperrors.PaymentFailed("card declined", nil))

	w := do(setupRouter(svc, clinicID), http.MethodPost, "/clinics/"+clinicID.String()+"/payments", `{"amount_cents":100}`, nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestRefundAcceptsEmptyBody(t *testing.T) {
	clinicID, id := uuid.New(), uuid.New()
	svc := new(mockService)
	svc.On("Refund", mock.Anything, clinicID, id, mock.MatchedBy(func(req *model.RefundRequest) bool {
		return req.AmountCents == nil
	})).Return(&model.Payment{ClinicID: clinicID, AmountCents: 500, RefundedCents: 500}, nil)

	w := do(setupRouter(svc, clinicID), http.MethodPost, "/clinics/"+clinicID.String()+"/payments/"+id.String()+"/refund", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestRefundPartial(t *testing.T) {
	clinicID, id := uuid.New(), uuid.New()
	svc := new(mockService)
	svc.On("Refund", mock.Anything, clinicID, id, mock.MatchedBy(func(req *model.RefundRequest) bool {
		return req.AmountCents != nil && *req.AmountCents == 200
	})).Return(&model.Payment{ClinicID: clinicID, AmountCents: 500, RefundedCents: 200}, nil)

	w := do(setupRouter(svc, clinicID), http.MethodPost, "/clinics/"+clinicID.String()+"/payments/"+id.String()+"/refund",
		`{"amount_cents":200}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestListPaymentsRejectsBadRange(t *testing.T) {
	clinicID := uuid.New()
	svc := new(mockService)

	w := do(setupRouter(svc, clinicID), http.MethodGet, "/clinics/"+clinicID.String()+"/payments?from=yesterday", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RFC 3339")
}

func TestSummaryPassesRange(t *testing.T) {
	clinicID := uuid.New()
	svc := new(mockService)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Summary", mock.Anything, clinicID, mock.MatchedBy(func(got *time.Time) bool {
		return got != nil && got.Equal(from)
	}), (*time.Time)(nil)).Return(&model.FinancialSummary{}, nil)

	w := do(setupRouter(svc, clinicID), http.MethodGet, "/clinics/"+clinicID.String()+"/payments/summary?from=2024-01-01T00:00:00Z", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
