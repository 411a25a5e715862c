// Package session issues the anonymous tokens that bind a browser to its cart.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

const DefaultTTL = 30 * 24 * time.Hour

type Service struct {
	tokens *tokenManager
	ttl    time.Duration
}

// New builds a session service. An empty secret gets a random one, which
// means tokens do not survive a restart.
func New(secret []byte, ttl time.Duration) (*Service, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Service{tokens: newTokenManager(secret, time.Now), ttl: ttl}, nil
}

// Issue starts a new cart session.
func (s *Service) Issue(_ context.Context) (token, sessionID string, err error) {
	sessionID = uuid.NewString()
	token, err = s.tokens.Issue(sessionID, s.ttl)
	if err != nil {
		return "", "", err
	}
	return token, sessionID, nil
}

func (s *Service) Lookup(_ context.Context, token string) (string, error) {
	sessionID, ok := s.tokens.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}
