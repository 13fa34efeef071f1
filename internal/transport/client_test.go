package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoJSONHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "1"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	c.SetToken("tok-abc")

	var out map[string]string
	if err := c.Post(context.Background(), "/api/thing", map[string]int{"n": 1}, &out); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got.Get("Authorization") != "Bearer tok-abc" {
		t.Fatalf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type = %q", got.Get("Content-Type"))
	}
	if got.Get("Accept") != "application/json" {
		t.Fatalf("Accept = %q", got.Get("Accept"))
	}
	if got.Get("X-Request-ID") == "" {
		t.Fatal("cada request lleva X-Request-ID")
	}
	if out["ok"] != "1" {
		t.Fatalf("decoded = %v", out)
	}
}

func TestClearToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	c.SetToken("tok")
	c.ClearToken()

	if err := c.Get(context.Background(), "/api/thing", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if auth != "" {
		t.Fatalf("Authorization = %q, want empty after ClearToken", auth)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "username taken"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	err := c.Post(context.Background(), "/api/register", map[string]string{}, nil)
	if err == nil {
		t.Fatal("want error")
	}
	if StatusOf(err) != http.StatusConflict {
		t.Fatalf("StatusOf = %d, want 409", StatusOf(err))
	}
	if IsNetwork(err) {
		t.Fatal("status error is not a network error")
	}
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("err type = %T", err)
	}
	if se.Code != "username taken" {
		t.Fatalf("Code = %q", se.Code)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // conexión rechazada

	c := New(Config{BaseURL: srv.URL})
	err := c.Get(context.Background(), "/api/thing", nil)
	if err == nil {
		t.Fatal("want error")
	}
	if !IsNetwork(err) {
		t.Fatalf("IsNetwork = false for %v", err)
	}
	if StatusOf(err) != 0 {
		t.Fatalf("StatusOf = %d, want 0", StatusOf(err))
	}
}

func TestUnauthorizedHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	var fired []string
	c.OnUnauthorized(func(path string) { fired = append(fired, path) })
	ctx := context.Background()

	// endpoints de auth: un 401 es una credencial mala, no una expiración
	_ = c.Post(ctx, "/api/login", nil, nil)
	_ = c.Post(ctx, "/api/register", nil, nil)
	_ = c.Get(ctx, "/api/user", nil)
	if len(fired) != 0 {
		t.Fatalf("hook fired for auth endpoints: %v", fired)
	}

	_ = c.Get(ctx, "/api/progress", nil)
	if len(fired) != 1 || fired[0] != "/api/progress" {
		t.Fatalf("hook = %v, want [/api/progress]", fired)
	}
}

func TestBaseURLTrimsSlash(t *testing.T) {
	c := New(Config{BaseURL: "https://sunschool.xyz/"})
	if c.BaseURL() != "https://sunschool.xyz" {
		t.Fatalf("BaseURL = %q", c.BaseURL())
	}
}
