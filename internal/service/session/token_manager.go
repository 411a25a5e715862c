package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// tokenManager signs <session>.<expiry> with HMAC-SHA256 so any instance
// sharing the secret can validate a token without shared state.
type tokenManager struct {
	secret []byte
	now    func() time.Time
}

func newTokenManager(secret []byte, now func() time.Time) *tokenManager {
	return &tokenManager{secret: secret, now: now}
}

func (m *tokenManager) Issue(sessionID string, ttl time.Duration) (string, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", errors.New("session id must be a uuid")
	}
	payload := sessionID + "." + strconv.FormatInt(m.now().Add(ttl).Unix(), 10)
	return payload + "." + m.sign(payload), nil
}

func (m *tokenManager) Validate(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(m.sign(payload))) {
		return "", false
	}
	expires, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m.now().Unix() > expires {
		return "", false
	}
	if _, err := uuid.Parse(parts[0]); err != nil {
		return "", false
	}
	return parts[0], true
}

func (m *tokenManager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
