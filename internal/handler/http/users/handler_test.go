package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"shopflow/internal/app/identity"
	"shopflow/internal/domain"
)

type mockIdentityService struct {
	mock.Mock
}

func (m *mockIdentityService) Register(ctx context.Context, req *identity.RegisterRequest) (*identity.AuthResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*identity.AuthResponse)
	return res, args.Error(1)
}

func (m *mockIdentityService) Login(ctx context.Context, req *identity.LoginRequest) (*identity.AuthResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*identity.AuthResponse)
	return res, args.Error(1)
}

func (m *mockIdentityService) GetUser(ctx context.Context, id int64) (*identity.UserResponse, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*identity.UserResponse)
	return res, args.Error(1)
}

func TestUserRoutes(t *testing.T) {
	svc := &mockIdentityService{}
	svc.On("Register", mock.Anything, mock.MatchedBy(func(r *identity.RegisterRequest) bool { return r.Email == "new@example.com" })).
		Return(&identity.AuthResponse{Token: "t", TokenType: "Bearer"}, nil)
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrEmailAlreadyExists)
	svc.On("Login", mock.Anything, mock.MatchedBy(func(r *identity.LoginRequest) bool { return r.Password == "right" })).
		Return(&identity.AuthResponse{Token: "t"}, nil)
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidCredentials)
	svc.On("GetUser", mock.Anything, int64(1)).Return(&identity.UserResponse{ID: 1}, nil)
	svc.On("GetUser", mock.Anything, int64(2)).Return(nil, domain.ErrUserNotFound)

	r := chi.NewRouter()
	RegisterRoutes(r, svc, zap.NewNop())

	tests := []struct {
		method, target, body string
		status               int
	}{
		{http.MethodPost, "/auth/register", `{"username":"new","email":"new@example.com","password":"secret1"}`, http.StatusCreated},
		{http.MethodPost, "/auth/register", `{"username":"dup","email":"dup@example.com","password":"secret1"}`, http.StatusConflict},
		{http.MethodPost, "/auth/login", `{"email":"new@example.com","password":"right"}`, http.StatusOK},
		{http.MethodPost, "/auth/login", `{"email":"new@example.com","password":"wrong"}`, http.StatusUnauthorized},
		{http.MethodPost, "/auth/login", `not json`, http.StatusBadRequest},
		{http.MethodGet, "/users/1", "", http.StatusOK},
		{http.MethodGet, "/users/2", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
