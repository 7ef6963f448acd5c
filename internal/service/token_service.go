package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes host vs participant tokens.
type TokenType string

const (
	TokenTypeHost        TokenType = "host"
	TokenTypeParticipant TokenType = "participant"
)

// Claims extends JWT standard claims with the session the token is bound to.
// Subject carries the participant id for participant tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	SessionID uuid.UUID `json:"sid"`
}

// ParticipantID parses the subject of a participant token.
func (c *Claims) ParticipantID() (uuid.UUID, error) {
	if c.TokenType != TokenTypeParticipant {
		return uuid.Nil, errors.New("not a participant token")
	}
	return uuid.Parse(c.Subject)
}

// TokenService issues and validates the HS256 tokens that bind a device to a session.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry}
}

// IssueHost creates the token that controls one session.
func (s *TokenService) IssueHost(sessionID uuid.UUID) (string, error) {
	return s.sign(TokenTypeHost, sessionID, sessionID.String())
}

// IssueParticipant creates the token a joined device submits answers with.
func (s *TokenService) IssueParticipant(sessionID, participantID uuid.UUID) (string, error) {
	return s.sign(TokenTypeParticipant, sessionID, participantID.String())
}

func (s *TokenService) sign(typ TokenType, sessionID uuid.UUID, subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		TokenType: typ,
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and validates a JWT, returning the claims.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
