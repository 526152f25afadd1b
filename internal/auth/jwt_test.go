package auth

import (
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	tok, err := SignJWT(42, "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	uid, err := ParseJWT(tok, "secret")
	if err != nil || uid != 42 {
		t.Fatalf("parse: uid=%d err=%v", uid, err)
	}
	if _, err := ParseJWT(tok, "other"); err == nil {
		t.Fatalf("wrong secret should fail")
	}
}

func TestParse_Expired(t *testing.T) {
	tok, err := SignJWT(1, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(tok, "secret"); err == nil {
		t.Fatalf("expired token should fail")
	}
}
