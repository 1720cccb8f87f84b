package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Hour)

	token, err := signer.Issue(Identity{AccountID: "acct-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	id, err := signer.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if id.AccountID != "acct-1" {
		t.Fatalf("expected account acct-1, got %s", id.AccountID)
	}
	if id.Email != "user@example.com" {
		t.Fatalf("expected email user@example.com, got %s", id.Email)
	}
}

func TestTokenSigner_RejectsTampering(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), time.Hour)

	token, err := signer.Issue(Identity{AccountID: "acct-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.SplitN(token, ".", 2)
	forged := parts[0] + "x." + parts[1]
	if _, err := signer.Parse(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered payload, got %v", err)
	}

	if _, err := signer.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestTokenSigner_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenSigner([]byte("secret-a"), time.Hour)
	verifier := NewTokenSigner([]byte("secret-b"), time.Hour)

	token, err := issuer.Issue(Identity{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := verifier.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestTokenSigner_RejectsExpired(t *testing.T) {
	signer := NewTokenSigner([]byte("test-secret"), -time.Minute)

	token, err := signer.Issue(Identity{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := signer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenSigner_MissingSecret(t *testing.T) {
	signer := NewTokenSigner(nil, time.Hour)
	if _, err := signer.Issue(Identity{AccountID: "acct-1"}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(4)

	hash, err := hasher.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !hasher.Compare("correct horse battery", hash) {
		t.Fatal("expected matching password to compare true")
	}
	if hasher.Compare("wrong password", hash) {
		t.Fatal("expected mismatching password to compare false")
	}
}
