package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/farmconnect/marketplace-api/internal/api/middleware"
	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn     func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error)
	loginFn        func(ctx context.Context, email, password string) (string, *domain.User, error)
	authenticateFn func(ctx context.Context, token string) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return s.authenticateFn(ctx, token)
}

// newJSONContext builds an echo context with the package validator installed.
func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			return ck
		}
	}
	return nil
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
			if in.Name != "Fiona" || in.Email != "fiona@farm.io" || in.Role != domain.RoleFarmer {
				t.Fatalf("unexpected input: %+v", in)
			}
			return "tok-1", &domain.User{ID: "u1", Name: in.Name, Email: in.Email, Role: in.Role}, nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{TTL: time.Hour})

	c, rec := newJSONContext(http.MethodPost, "/auth/register",
		`{"name":"Fiona","email":"fiona@farm.io","password":"pw","role":"farmer"}`)
	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "tok-1" || resp.User.ID != "u1" || resp.User.Role != "farmer" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks password fields: %s", rec.Body.String())
	}

	ck := sessionCookie(rec)
	if ck == nil {
		t.Fatal("expected session cookie")
	}
	if ck.Value != "tok-1" || !ck.HttpOnly || ck.MaxAge != 3600 || ck.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie: %+v", ck)
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
			t.Fatal("service must not be called")
			return "", nil, nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	cases := map[string]string{
		"missing name": `{"email":"a@b.io","password":"pw","role":"farmer"}`,
		"bad email":    `{"name":"A","email":"nope","password":"pw","role":"farmer"}`,
		"bad role":     `{"name":"A","email":"a@b.io","password":"pw","role":"admin"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newJSONContext(http.MethodPost, "/auth/register", body)
			err := handler.Register(c)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
			return "", nil, domain.ErrUserExists
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	c, rec := newJSONContext(http.MethodPost, "/auth/register",
		`{"name":"A","email":"a@b.io","password":"pw","role":"consumer"}`)
	err := handler.Register(c)
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if sessionCookie(rec) != nil {
		t.Fatal("no cookie expected on failure")
	}
}

func TestAuthHandler_Register_InvalidJSON(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{}, CookieOptions{})

	c, _ := newJSONContext(http.MethodPost, "/auth/register", `{"name":`)
	err := handler.Register(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (string, *domain.User, error) {
			if email != "c@farm.io" || password != "pw" {
				t.Fatalf("unexpected credentials: %s %s", email, password)
			}
			return "tok-2", &domain.User{ID: "u2", Email: email, Role: domain.RoleConsumer}, nil
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{Secure: true})

	c, rec := newJSONContext(http.MethodPost, "/auth/login", `{"email":"c@farm.io","password":"pw"}`)
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "tok-2" || resp.User.Email != "c@farm.io" {
		t.Fatalf("unexpected payload: %+v", resp)
	}

	ck := sessionCookie(rec)
	if ck == nil || !ck.Secure || ck.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected cookie: %+v", ck)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, email, password string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub, CookieOptions{})

	c, _ := newJSONContext(http.MethodPost, "/auth/login", `{"email":"c@farm.io","password":"bad"}`)
	if err := handler.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{}, CookieOptions{})

	c, rec := newJSONContext(http.MethodPost, "/auth/logout", "")
	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ck := sessionCookie(rec)
	if ck == nil || ck.Value != "" || ck.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got %+v", ck)
	}
}

func TestAuthHandler_Profile(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{}, CookieOptions{})

	c, rec := newJSONContext(http.MethodGet, "/auth/profile", "")
	c.Set(ctxUserKey, &domain.User{ID: "u1", Name: "Fiona", Email: "f@farm.io", Role: domain.RoleFarmer})
	if err := handler.Profile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.User.ID != "u1" || resp.User.Name != "Fiona" {
		t.Fatalf("unexpected profile: %+v", resp)
	}
}

func TestAuthHandler_Profile_WithoutUser(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{}, CookieOptions{})

	c, _ := newJSONContext(http.MethodGet, "/auth/profile", "")
	if err := handler.Profile(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
