package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("token secret is not configured")
)

// Identity is the authenticated principal carried by a token.
type Identity struct {
	AccountID string
	Email     string
}

// TokenSigner encapsulates HMAC issuance/validation so handlers stay small.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner returns a signer that issues compact HMAC tokens.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: secret,
		ttl:    ttl,
	}
}

// Issue mints a bearer token for the given identity.
func (s *TokenSigner) Issue(id Identity) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	if id.AccountID == "" {
		return "", errors.New("account id is required")
	}

	claims := []byte(id.AccountID + "|" + id.Email)
	payload := make([]byte, 4+len(claims))
	expires := uint32(time.Now().Add(s.ttl).Unix())
	binary.BigEndian.PutUint32(payload[:4], expires)
	copy(payload[4:], claims)

	payloadEnc := base64.RawURLEncoding.EncodeToString(payload)
	signature := s.sign(payload)
	sigEnc := base64.RawURLEncoding.EncodeToString(signature[:16])
	return fmt.Sprintf("%s.%s", payloadEnc, sigEnc), nil
}

// Parse checks signature integrity and TTL, then recovers the identity.
func (s *TokenSigner) Parse(token string) (Identity, error) {
	if len(s.secret) == 0 {
		return Identity{}, ErrMissingSecret
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return Identity{}, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	sigProvided, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if len(sigProvided) != 16 {
		return Identity{}, ErrInvalidToken
	}

	expected := s.sign(payload)
	if !hmac.Equal(sigProvided, expected[:16]) {
		return Identity{}, ErrInvalidToken
	}

	if len(payload) < 5 {
		return Identity{}, ErrInvalidToken
	}
	expires := binary.BigEndian.Uint32(payload[:4])
	if time.Now().Unix() > int64(expires) {
		return Identity{}, ErrInvalidToken
	}

	accountID, email, _ := strings.Cut(string(payload[4:]), "|")
	if accountID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{AccountID: accountID, Email: email}, nil
}

func (s *TokenSigner) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
