package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	sessions := NewRedisSessionStore(redisSrv.Addr(), "", time.Hour)

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

	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := sessions.GetEmailByToken(token); ok {
		t.Fatalf("deleted session should not resolve")
	}
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	sessions := NewRedisSessionStore(redisSrv.Addr(), "", time.Minute)

	token, err := sessions.NewSession("bob@x.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	redisSrv.FastForward(2 * time.Minute)
	if _, ok, _ := sessions.GetEmailByToken(token); ok {
		t.Fatalf("expired session should not resolve")
	}
}
