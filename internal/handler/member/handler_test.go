package member

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func (m *mockService) ListMembers(ctx context.Context, filters *model.MemberFilters) ([]*model.Member, error) {
	args := m.Called(ctx, filters)
	ms, _ := args.Get(0).([]*model.Member)
	return ms, args.Error(1)
}

func (m *mockService) GetMember(ctx context.Context, clinicID, id uuid.UUID) (*model.Member, error) {
	args := m.Called(ctx, clinicID, id)
	mem, _ := args.Get(0).(*model.Member)
	return mem, args.Error(1)
}

func (m *mockService) UpdateMemberRole(ctx context.Context, clinicID, id uuid.UUID, role model.Role) (*model.Member, error) {
	args := m.Called(ctx, clinicID, id, role)
	mem, _ := args.Get(0).(*model.Member)
	return mem, args.Error(1)
}

func (m *mockService) DeactivateMember(ctx context.Context, clinicID, id uuid.UUID) error {
	return m.Called(ctx, clinicID, id).Error(0)
}

func (m *mockService) RemoveMember(ctx context.Context, clinicID, id uuid.UUID) error {
	return m.Called(ctx, clinicID, id).Error(0)
}

func setupRouter(svc *mockService, clinicID uuid.UUID) *gin.Engine {
	h := NewHandler(svc)
	r := gin.New()
	g := r.Group("/clinics/:clinicID", func(c *gin.Context) {
		c.Set(middleware.ContextClinicID, clinicID)
	})
	g.GET("/members", h.ListMembers)
	g.GET("/members/:memberID", h.GetMember)
	g.PATCH("/members/:memberID/role", h.UpdateRole)
	g.POST("/members/:memberID/deactivate", h.DeactivateMember)
	g.DELETE("/members/:memberID", h.RemoveMember)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListMembers_PassesFilters(t *testing.T) {
	svc := new(mockService)
	clinicID := uuid.New()
	svc.On("ListMembers", mock.Anything, &model.MemberFilters{
		ClinicID: clinicID,
		Role:     model.RoleReceptionist,
		Status:   model.MemberStatusActive,
	}).Return([]*model.Member{{Name: "Ana"}}, nil)

	w := do(setupRouter(svc, clinicID), http.MethodGet,
		"/clinics/"+clinicID.String()+"/members?role=receptionist&status=active", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Ana"`)
	svc.AssertExpectations(t)
}

func TestUpdateRole(t *testing.T) {
	clinicID, memberID := uuid.New(), uuid.New()
	path := "/clinics/" + clinicID.String() + "/members/" + memberID.String() + "/role"

	t.Run("unknown role", func(t *testing.T) {
		svc := new(mockService)
		w := do(setupRouter(svc, clinicID), http.MethodPatch, path, `{"role":"janitor"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdateMemberRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("last owner", func(t *testing.T) {
		svc := new(mockService)
		svc.On("UpdateMemberRole", mock.Anything, clinicID, memberID, model.RoleAdmin).
			Return(nil, apperrors.Conflict("clinic must keep at least one owner", nil))
		w := do(setupRouter(svc, clinicID), http.MethodPatch, path, `{"role":"admin"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("changed", func(t *testing.T) {
		svc := new(mockService)
		svc.On("UpdateMemberRole", mock.Anything, clinicID, memberID, model.RoleProfessional).
			Return(&model.Member{ClinicUser: model.ClinicUser{Role: model.RoleProfessional}}, nil)
		w := do(setupRouter(svc, clinicID), http.MethodPatch, path, `{"role":"professional"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"professional"`)
	})
}

func TestDeactivateAndRemove(t *testing.T) {
	svc := new(mockService)
	clinicID, memberID := uuid.New(), uuid.New()
	base := "/clinics/" + clinicID.String() + "/members/" + memberID.String()
	svc.On("DeactivateMember", mock.Anything, clinicID, memberID).Return(nil)
	svc.On("RemoveMember", mock.Anything, clinicID, memberID).
		Return(apperrors.NotFound("member", nil))

	r := setupRouter(svc, clinicID)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, base+"/deactivate", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/clinics/"+clinicID.String()+"/members/nope", "").Code)
	svc.AssertExpectations(t)
}
