package store

import (
	"testing"
	"time"
)

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := sessions.NewSession("alice@x.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	email, ok, err := sessions.GetEmailByToken(token)
	if err != nil || !ok {
		t.Fatalf("get session: ok=%v err=%v", ok, err)
	}
	if email != "alice@x.com" {
		t.Fatalf("email = %q, want alice@x.com", email)
	}
}

func TestJWTSessionStoreRejectsTamperedToken(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	other, err := NewJWTSessionStore("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := other.NewSession("alice@x.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := sessions.GetEmailByToken(token); ok {
		t.Fatalf("token signed with another secret should not validate")
	}
	if _, ok, _ := sessions.GetEmailByToken("not-a-jwt"); ok {
		t.Fatalf("garbage token should not validate")
	}
}

func TestJWTSessionStoreExpiry(t *testing.T) {
	sessions, err := NewJWTSessionStore("test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := sessions.NewSession("alice@x.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := sessions.GetEmailByToken(token); ok {
		t.Fatalf("expired token should not validate")
	}
}

func TestJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("", time.Hour); err == nil {
		t.Fatalf("expected constructor error for empty secret")
	}
}
