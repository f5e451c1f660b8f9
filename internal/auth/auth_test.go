package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const secret = "0123456789abcdef0123456789abcdef"

var fixedNow = time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func signWith(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(secret, clock)
	user := uuid.New()

	valid, err := v.Sign(user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: valid},
		{name: "empty", token: "", wantErr: true},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
		{
			name: "expired",
			token: signWith(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
				Subject:   user.String(),
				ExpiresAt: jwt.NewNumericDate(fixedNow.Add(-time.Minute)),
			}),
			wantErr: true,
		},
		{
			name: "missing expiry",
			token: signWith(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
				Subject: user.String(),
			}),
			wantErr: true,
		},
		{
			name: "wrong secret",
			token: signWith(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-!!"), jwt.RegisteredClaims{
				Subject:   user.String(),
				ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
			}),
			wantErr: true,
		},
		{
			name: "wrong algorithm",
			token: signWith(t, jwt.SigningMethodHS512, []byte(secret), jwt.RegisteredClaims{
				Subject:   user.String(),
				ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
			}),
			wantErr: true,
		},
		{
			name: "subject not a uuid",
			token: signWith(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("Verify() err = %v, want ErrUnauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() err = %v", err)
			}
			if got != user {
				t.Errorf("Verify() = %s, want %s", got, user)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(r); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(secret, clock)
	user := uuid.New()
	token, _ := v.Sign(user, time.Hour)

	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusUnauthorized)
	}

	t.Run("valid token", func(t *testing.T) {
		seen = uuid.Nil
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		Middleware(v, uuid.Nil, onError)(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent || seen != user {
			t.Errorf("code = %d, user = %s", rec.Code, seen)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Middleware(v, uuid.Nil, onError)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("code = %d, want 401", rec.Code)
		}
	})

	t.Run("dev user", func(t *testing.T) {
		dev := uuid.New()
		seen = uuid.Nil
		rec := httptest.NewRecorder()
		Middleware(v, dev, onError)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
		if rec.Code != http.StatusNoContent || seen != dev {
			t.Errorf("code = %d, user = %s", rec.Code, seen)
		}
	})
}
