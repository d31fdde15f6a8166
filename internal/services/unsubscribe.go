package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid unsubscribe token")

// UnsubscribeSigner issues stateless unsubscribe tokens of the form
// base64url(email ":" hex(hmac_sha256(secret, email))).
type UnsubscribeSigner struct {
	secret []byte
}

func NewUnsubscribeSigner(secret string) (*UnsubscribeSigner, error) {
	if secret == "" {
		return nil, errors.New("UNSUBSCRIBE_SECRET is required")
	}
	return &UnsubscribeSigner{secret: []byte(secret)}, nil
}

func (s *UnsubscribeSigner) mac(email string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(email))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *UnsubscribeSigner) Token(email string) string {
	email = normaliseEmail(email)
	return base64.RawURLEncoding.EncodeToString([]byte(email + ":" + s.mac(email)))
}

// Verify returns the email the token was issued for. It never touches storage.
func (s *UnsubscribeSigner) Verify(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", ErrInvalidToken
	}
	i := strings.LastIndexByte(string(raw), ':')
	if i <= 0 {
		return "", ErrInvalidToken
	}
	email, sig := string(raw[:i]), string(raw[i+1:])
	if !hmac.Equal([]byte(sig), []byte(s.mac(email))) {
		return "", ErrInvalidToken
	}
	return email, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
