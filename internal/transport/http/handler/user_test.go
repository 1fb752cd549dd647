package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/transport/http/handler"
	"github.com/ErlanBelekov/interview-genie/internal/usecase"
	"github.com/gin-gonic/gin"
)

type fakeUserUsecase struct {
	getProfile    func(ctx context.Context, callerID, userID string) (*domain.Profile, error)
	updateProfile func(ctx context.Context, callerID, userID string, in usecase.UpdateProfileInput) (*domain.Profile, error)
}

func (f *fakeUserUsecase) GetProfile(ctx context.Context, callerID, userID string) (*domain.Profile, error) {
	return f.getProfile(ctx, callerID, userID)
}

func (f *fakeUserUsecase) UpdateProfile(ctx context.Context, callerID, userID string, in usecase.UpdateProfileInput) (*domain.Profile, error) {
	return f.updateProfile(ctx, callerID, userID, in)
}

func newUserEngine(uc *fakeUserUsecase) *gin.Engine {
	h := handler.NewUserHandler(uc, discardLogger())

	r := gin.New()
	asCaller := func(c *gin.Context) {
		c.Set("userID", testUserID)
		c.Next()
	}
	r.GET("/users/:id", asCaller, h.Get)
	r.PATCH("/users/:id", asCaller, h.Update)
	return r
}

func TestGetUser_PassesCallerAndTarget(t *testing.T) {
	var caller, target string
	uc := &fakeUserUsecase{
		getProfile: func(_ context.Context, callerID, userID string) (*domain.Profile, error) {
			caller, target = callerID, userID
			return &domain.Profile{ID: userID, Email: "ada@example.com", Credits: 100}, nil
		},
	}
	w := httptest.NewRecorder()
	newUserEngine(uc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+testUserID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if caller != testUserID || target != testUserID {
		t.Errorf("caller = %q target = %q", caller, target)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("profile leaks password field: %q", w.Body.String())
	}
}

func TestGetUser_OtherUser_Returns401(t *testing.T) {
	uc := &fakeUserUsecase{
		getProfile: func(context.Context, string, string) (*domain.Profile, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	w := httptest.NewRecorder()
	newUserEngine(uc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/someone-else", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGetUser_NotFound_Returns404(t *testing.T) {
	uc := &fakeUserUsecase{
		getProfile: func(context.Context, string, string) (*domain.Profile, error) {
			return nil, domain.ErrUserNotFound
		},
	}
	w := httptest.NewRecorder()
	newUserEngine(uc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/"+testUserID, nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateUser_InvalidImage_Returns400(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/"+testUserID, strings.NewReader(`{"image":"not a url"}`))
	req.Header.Set("Content-Type", "application/json")
	newUserEngine(&fakeUserUsecase{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateUser_Success(t *testing.T) {
	uc := &fakeUserUsecase{
		updateProfile: func(_ context.Context, _, userID string, in usecase.UpdateProfileInput) (*domain.Profile, error) {
			return &domain.Profile{ID: userID, Name: in.Name}, nil
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/users/"+testUserID, strings.NewReader(`{"name":"Ada Lovelace"}`))
	req.Header.Set("Content-Type", "application/json")
	newUserEngine(uc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Ada Lovelace") {
		t.Errorf("body = %q", w.Body.String())
	}
}
