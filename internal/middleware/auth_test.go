package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

const testIdentity model.Identity = "0x00000000000000000000000000000000000000a1"

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetIdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("identity not in context")
		}
		if id != testIdentity {
			t.Fatalf("identity from context = %s, want %s", id, testIdentity)
		}
	})

	r := httptest.NewRequest(http.MethodPost, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+m.Token(testIdentity))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic " + m.Token(testIdentity)},
		{name: "no signature", header: "Bearer " + string(testIdentity)},
		{name: "foreign secret", header: "Bearer " + other.Token(testIdentity)},
		{name: "tampered identity", header: "Bearer 0x00000000000000000000000000000000000000b0." + m.sign(string(testIdentity))},
		{name: "invalid identity", header: "Bearer " + m.Token("bad identity")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestGetIdentityFromContext_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := GetIdentityFromContext(r.Context()); ok {
		t.Fatalf("expected no identity in bare context")
	}
	if _, ok := GetIdentityFromContext(WithIdentity(r.Context(), "")); ok {
		t.Fatalf("empty identity must not be accepted")
	}
}
