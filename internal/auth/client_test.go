package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginStoresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"u1","email":"a@b.com","username":"alpha"},"token":"tok-123"}`))
	}))
	defer srv.Close()

	store := NewTokenStore()
	client := NewClient(ClientConfig{BaseURL: srv.URL}, store)

	session, err := client.Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.AccessToken != "tok-123" {
		t.Errorf("expected token tok-123, got %q", session.AccessToken)
	}
	if store.AccessToken() != "tok-123" {
		t.Errorf("expected token stored, got %q", store.AccessToken())
	}
	if u := store.CurrentUser(); u == nil || u.ID != "u1" {
		t.Errorf("expected stored user u1, got %+v", u)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := NewTokenStore()
	client := NewClient(ClientConfig{BaseURL: srv.URL}, store)

	_, err := client.Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "wrong"})
	authErr, ok := err.(AuthError)
	if !ok || authErr.Code != ErrInvalidCredentials.Code {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if store.Authenticated() {
		t.Error("failed login must not store a credential")
	}
}

func TestProfileFetch401InvalidatesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := NewTokenStore()
	store.SetSession("stale-token", User{ID: "u1"})
	client := NewClient(ClientConfig{BaseURL: srv.URL}, store)

	_, err := client.FetchProfile(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if store.Authenticated() {
		t.Error("401 on profile fetch must invalidate the stored credential")
	}
}

func TestProfileFetchServerErrorKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewTokenStore()
	store.SetSession("good-token", User{ID: "u1"})
	client := NewClient(ClientConfig{BaseURL: srv.URL}, store)

	_, err := client.FetchProfile(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !store.Authenticated() {
		t.Error("a 5xx must not invalidate the stored credential")
	}
}

func TestLogoutClearsLocalSessionEvenWhenRemoteFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewTokenStore()
	store.SetSession("tok", User{ID: "u1"})
	client := NewClient(ClientConfig{BaseURL: srv.URL}, store)

	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("logout must not surface remote failure: %v", err)
	}
	if store.Authenticated() {
		t.Error("logout must clear the local session")
	}
}

func TestRemoteErrorBodyPreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"EMAIL_EXISTS","message":"email already registered"}`))
	}))
	defer srv.Close()

	store := NewTokenStore()
	client := NewClient(ClientConfig{BaseURL: srv.URL}, store)

	_, err := client.Register(context.Background(), RegisterRequest{Email: "a@b.com", Password: "secret123", Username: "alpha"})
	authErr, ok := err.(AuthError)
	if !ok {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Code != "EMAIL_EXISTS" || authErr.Status != http.StatusConflict {
		t.Errorf("unexpected error: %+v", authErr)
	}
}
