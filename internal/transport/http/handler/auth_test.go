package handler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/transport/http/handler"
	"github.com/ErlanBelekov/interview-genie/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testUserID = "5b8f0c4e-3c1a-4d8e-9a51-2f1c7a0d9e11"

// fakeAuthUsecase implements the unexported authUsecaser interface via method matching.
type fakeAuthUsecase struct {
	signup         func(ctx context.Context, in usecase.SignupInput) (*domain.Profile, error)
	login          func(ctx context.Context, in usecase.LoginInput) (*usecase.LoginResult, error)
	verifyOTP      func(ctx context.Context, userID, otp string) error
	resendOTP      func(ctx context.Context, userID string) error
	forgotPassword func(ctx context.Context, email, clientIP string) error
	resetPassword  func(ctx context.Context, rawToken, password string) error
	logout         func(ctx context.Context, sessionID string) error
}

func (f *fakeAuthUsecase) Signup(ctx context.Context, in usecase.SignupInput) (*domain.Profile, error) {
	return f.signup(ctx, in)
}

func (f *fakeAuthUsecase) Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginResult, error) {
	return f.login(ctx, in)
}

func (f *fakeAuthUsecase) VerifyOTP(ctx context.Context, userID, otp string) error {
	return f.verifyOTP(ctx, userID, otp)
}

func (f *fakeAuthUsecase) ResendOTP(ctx context.Context, userID string) error {
	return f.resendOTP(ctx, userID)
}

func (f *fakeAuthUsecase) ForgotPassword(ctx context.Context, email, clientIP string) error {
	return f.forgotPassword(ctx, email, clientIP)
}

func (f *fakeAuthUsecase) ResetPassword(ctx context.Context, rawToken, password string) error {
	return f.resetPassword(ctx, rawToken, password)
}

func (f *fakeAuthUsecase) Logout(ctx context.Context, sessionID string) error {
	return f.logout(ctx, sessionID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(uc *fakeAuthUsecase) *gin.Engine {
	h := handler.NewAuthHandler(uc, discardLogger())

	r := gin.New()
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/verify-otp", h.VerifyOTP)
	r.POST("/auth/resend-otp", h.ResendOTP)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/reset-password", h.ResetPassword)
	r.POST("/auth/logout", func(c *gin.Context) {
		c.Set("sessionID", "session-1")
		c.Next()
	}, h.Logout)
	return r
}

func post(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

// ---- Signup ----

func TestSignup_InvalidJSON_Returns400(t *testing.T) {
	w := post(t, newTestEngine(&fakeAuthUsecase{}), "/auth/signup", `{bad json}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSignup_ShortPassword_Returns400(t *testing.T) {
	w := post(t, newTestEngine(&fakeAuthUsecase{}), "/auth/signup", `{"email":"ada@example.com","password":"short"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSignup_Success_Returns201(t *testing.T) {
	uc := &fakeAuthUsecase{
		signup: func(_ context.Context, in usecase.SignupInput) (*domain.Profile, error) {
			return &domain.Profile{ID: testUserID, Email: in.Email}, nil
		},
	}
	w := post(t, newTestEngine(uc), "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"long enough pw"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if !strings.Contains(w.Body.String(), testUserID) {
		t.Errorf("body %q does not contain user id", w.Body.String())
	}
}

func TestSignup_EmailTaken_Returns409(t *testing.T) {
	uc := &fakeAuthUsecase{
		signup: func(context.Context, usecase.SignupInput) (*domain.Profile, error) {
			return nil, domain.ErrEmailTaken
		},
	}
	w := post(t, newTestEngine(uc), "/auth/signup", `{"email":"ada@example.com","password":"long enough pw"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestSignup_Breached_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{
		signup: func(context.Context, usecase.SignupInput) (*domain.Profile, error) {
			return nil, domain.ErrPasswordBreached
		},
	}
	w := post(t, newTestEngine(uc), "/auth/signup", `{"email":"ada@example.com","password":"password123"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "breach") {
		t.Errorf("body %q should explain the breach", w.Body.String())
	}
}

// ---- Login ----

func TestLogin_PassesClientIPAndUserAgent(t *testing.T) {
	var got usecase.LoginInput
	uc := &fakeAuthUsecase{
		login: func(_ context.Context, in usecase.LoginInput) (*usecase.LoginResult, error) {
			got = in
			return &usecase.LoginResult{Token: "header.payload.signature", User: domain.Profile{ID: testUserID}}, nil
		},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "genie-test")
	req.RemoteAddr = "198.51.100.4:5555"
	newTestEngine(uc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.ClientIP != "198.51.100.4" || got.UserAgent != "genie-test" {
		t.Errorf("login input = %+v", got)
	}
	if !strings.Contains(w.Body.String(), "header.payload.signature") {
		t.Errorf("body %q does not contain token", w.Body.String())
	}
}

func TestLogin_InvalidCredentials_Returns401Generic(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(context.Context, usecase.LoginInput) (*usecase.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	w := post(t, newTestEngine(uc), "/auth/login", `{"email":"ada@example.com","password":"pw"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid email or password") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestLogin_Unverified_Returns403(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(context.Context, usecase.LoginInput) (*usecase.LoginResult, error) {
			return nil, domain.ErrEmailNotVerified
		},
	}
	w := post(t, newTestEngine(uc), "/auth/login", `{"email":"ada@example.com","password":"pw"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestLogin_RateLimited_Returns429WithRetryAfter(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(context.Context, usecase.LoginInput) (*usecase.LoginResult, error) {
			return nil, &domain.RateLimitedError{RetryAfter: 90*time.Second + 300*time.Millisecond}
		},
	}
	w := post(t, newTestEngine(uc), "/auth/login", `{"email":"ada@example.com","password":"pw"}`)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "91" {
		t.Errorf("Retry-After = %q, want 91", got)
	}
	if !strings.Contains(w.Body.String(), "91 seconds") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestLogin_InternalError_Returns500WithoutDetail(t *testing.T) {
	uc := &fakeAuthUsecase{
		login: func(context.Context, usecase.LoginInput) (*usecase.LoginResult, error) {
			return nil, errors.New("pgx: connection refused to 10.0.0.5")
		},
	}
	w := post(t, newTestEngine(uc), "/auth/login", `{"email":"ada@example.com","password":"pw"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Errorf("body leaks internal detail: %q", w.Body.String())
	}
}

// ---- VerifyOTP / ResendOTP ----

func TestVerifyOTP_WrongLength_Returns400(t *testing.T) {
	w := post(t, newTestEngine(&fakeAuthUsecase{}), "/auth/verify-otp", `{"userId":"`+testUserID+`","otp":"12345"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyOTP_InvalidCode_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{
		verifyOTP: func(context.Context, string, string) error { return domain.ErrTokenInvalid },
	}
	w := post(t, newTestEngine(uc), "/auth/verify-otp", `{"userId":"`+testUserID+`","otp":"123456"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyOTP_Success(t *testing.T) {
	uc := &fakeAuthUsecase{
		verifyOTP: func(_ context.Context, userID, otp string) error {
			if userID != testUserID || otp != "123456" {
				return errors.New("unexpected input")
			}
			return nil
		},
	}
	w := post(t, newTestEngine(uc), "/auth/verify-otp", `{"userId":"`+testUserID+`","otp":"123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":true`) {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestResendOTP_RateLimited_Returns429(t *testing.T) {
	uc := &fakeAuthUsecase{
		resendOTP: func(context.Context, string) error {
			return &domain.RateLimitedError{RetryAfter: time.Minute}
		},
	}
	w := post(t, newTestEngine(uc), "/auth/resend-otp", `{"userId":"`+testUserID+`"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

// ---- ForgotPassword / ResetPassword ----

func TestForgotPassword_UsecaseError_StillReturns200(t *testing.T) {
	uc := &fakeAuthUsecase{
		forgotPassword: func(context.Context, string, string) error {
			return errors.New("internal failure")
		},
	}
	w := post(t, newTestEngine(uc), "/auth/forgot-password", `{"email":"ada@example.com"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (must not reveal errors)", w.Code)
	}
}

func TestForgotPassword_InvalidEmail_Returns400(t *testing.T) {
	w := post(t, newTestEngine(&fakeAuthUsecase{}), "/auth/forgot-password", `{"email":"not-an-email"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestResetPassword_InvalidToken_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{
		resetPassword: func(context.Context, string, string) error { return domain.ErrTokenInvalid },
	}
	w := post(t, newTestEngine(uc), "/auth/reset-password", `{"token":"abc","password":"long enough pw"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid or expired") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestResetPassword_Success(t *testing.T) {
	uc := &fakeAuthUsecase{
		resetPassword: func(context.Context, string, string) error { return nil },
	}
	w := post(t, newTestEngine(uc), "/auth/reset-password", `{"token":"abc","password":"long enough pw"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// ---- Logout ----

func TestLogout_DeletesCurrentSession(t *testing.T) {
	var got string
	uc := &fakeAuthUsecase{
		logout: func(_ context.Context, sessionID string) error {
			got = sessionID
			return nil
		},
	}
	w := post(t, newTestEngine(uc), "/auth/logout", ``)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got != "session-1" {
		t.Errorf("session = %q, want session-1", got)
	}
}
