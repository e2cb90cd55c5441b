package main

import (
	"strings"
	"testing"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	return NewAuth(openTestDB(t))
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAuth(t)

	id, token, err := a.Register("alice", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == 0 || token == "" {
		t.Fatalf("register returned id=%d token=%q", id, token)
	}

	loginID, loginToken, err := a.Login("alice", "secret", "1.2.3.4")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginID != id || loginToken == "" {
		t.Errorf("login id=%d, want %d", loginID, id)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestAuth(t)
	a.Register("alice", "secret")

	if _, _, err := a.Login("alice", "wrong", "1.2.3.4"); err == nil {
		t.Error("wrong password should fail")
	}
	if _, _, err := a.Login("nobody", "secret", "1.2.3.4"); err == nil {
		t.Error("unknown user should fail")
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAuth(t)

	if _, _, err := a.Register("a", "secret"); err == nil {
		t.Error("one-character username should be rejected")
	}
	if _, _, err := a.Register(strings.Repeat("x", 17), "secret"); err == nil {
		t.Error("17-character username should be rejected")
	}
	if _, _, err := a.Register("alice", "abc"); err == nil {
		t.Error("short password should be rejected")
	}
	if _, _, err := a.Register("alice", "secret"); err != nil {
		t.Errorf("valid registration failed: %v", err)
	}
	if _, _, err := a.Register("alice", "other"); err == nil {
		t.Error("duplicate username should be rejected")
	}
}

func TestValidateToken(t *testing.T) {
	a := newTestAuth(t)
	id, token, err := a.Register("alice", "secret")
	if err != nil {
		t.Fatal(err)
	}

	gotID, username, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotID != id || username != "alice" {
		t.Errorf("claims = (%d, %q), want (%d, alice)", gotID, username, id)
	}

	if _, _, err := a.ValidateToken("garbage"); err == nil {
		t.Error("malformed token should fail validation")
	}
	if _, _, err := a.ValidateToken(token + "x"); err == nil {
		t.Error("tampered signature should fail validation")
	}
}

func TestTokenBoundToSecret(t *testing.T) {
	a1 := newTestAuth(t)
	a2 := newTestAuth(t)
	_, token, err := a1.Register("alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := a2.ValidateToken(token); err == nil {
		t.Error("token signed with another server's secret should fail")
	}
}

func TestSecretPersistsAcrossRestarts(t *testing.T) {
	db := openTestDB(t)
	a1 := NewAuth(db)
	_, token, err := a1.Register("alice", "secret")
	if err != nil {
		t.Fatal(err)
	}

	a2 := NewAuth(db) // same database, fresh process
	if _, _, err := a2.ValidateToken(token); err != nil {
		t.Errorf("token should survive a restart with the same database: %v", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	a := newTestAuth(t)
	a.Register("alice", "secret")

	for i := 0; i < maxLoginAttempts; i++ {
		a.Login("alice", "wrong", "9.9.9.9")
	}
	if _, _, err := a.Login("alice", "secret", "9.9.9.9"); err == nil {
		t.Error("attempts past the window limit should be refused")
	}
	// A different address is unaffected.
	if _, _, err := a.Login("alice", "secret", "8.8.8.8"); err != nil {
		t.Errorf("other address blocked: %v", err)
	}
}
